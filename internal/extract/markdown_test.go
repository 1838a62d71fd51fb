package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/siteaudit/internal/model"
)

func TestRenderMarkdown_OmitsEmptySections(t *testing.T) {
	d := &model.PageDigest{URL: "https://example.com/"}
	md := RenderMarkdown(d)

	assert.Contains(t, md, "# Page: https://example.com/")
	// Trust signals are boolean data, always present.
	assert.Contains(t, md, "## Trust Signals")

	for _, absent := range []string{
		"## Title", "## Meta Description", "## Hero", "## Value Propositions",
		"## Social Proof", "## Pricing", "## FAQ", "## Calls To Action",
		"## Urgency Markers", "## Body Text", "## Code Blocks",
		"## Heading Outline", "## Links", "## Tables",
	} {
		assert.NotContains(t, md, absent, absent)
	}
}

func TestRenderMarkdown_Deterministic(t *testing.T) {
	d := Extract(syntheticPage, "https://acme.test/")
	assert.Equal(t, RenderMarkdown(d), RenderMarkdown(d))
}

func TestRenderMarkdown_Sections(t *testing.T) {
	d := &model.PageDigest{
		URL:        "https://acme.test/",
		Meta:       model.PageMeta{Title: "Acme", Description: "Desc"},
		Hero:       model.Hero{Headline: "Big claim", PrimaryCallToAction: "Go"},
		ValueProps: []string{"Fast", "Private"},
		Headings: []model.Heading{
			{Level: 1, Text: "Big claim"},
			{Level: 2, Text: "Fast"},
		},
		Links: []model.Link{
			{Kind: model.LinkInternal, URL: "https://acme.test/a", Text: "A"},
			{Kind: model.LinkExternal, URL: "https://other.test/b", Text: "B"},
		},
		Tables: []model.Table{{
			Headers: []string{"Plan", "Price"},
			Rows:    [][]string{{"Starter", "$9"}},
		}},
		CodeBlocks: []string{"SELECT 1;  -- smoke query"},
		BodyText:   "Some body.",
	}
	md := RenderMarkdown(d)

	assert.Contains(t, md, "## Title\nAcme")
	assert.Contains(t, md, "- Headline: Big claim")
	assert.Contains(t, md, "- Fast\n- Private")
	assert.Contains(t, md, "- H1: Big claim")
	assert.Contains(t, md, "  - H2: Fast")
	assert.Contains(t, md, "### Internal\n- [A](https://acme.test/a)")
	assert.Contains(t, md, "### External\n- [B](https://other.test/b)")
	assert.Contains(t, md, "| Plan | Price |")
	assert.Contains(t, md, "| --- | --- |")
	assert.Contains(t, md, "| Starter | $9 |")
	assert.Contains(t, md, "```\nSELECT 1;  -- smoke query\n```")
	assert.Contains(t, md, "## Body Text\nSome body.")

	// Section ordering is fixed.
	assert.Less(t, strings.Index(md, "## Title"), strings.Index(md, "## Hero"))
	assert.Less(t, strings.Index(md, "## Hero"), strings.Index(md, "## Body Text"))
	assert.Less(t, strings.Index(md, "## Body Text"), strings.Index(md, "## Heading Outline"))
	assert.Less(t, strings.Index(md, "## Heading Outline"), strings.Index(md, "## Links"))
	assert.Less(t, strings.Index(md, "## Links"), strings.Index(md, "## Tables"))
}
