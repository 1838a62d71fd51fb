package extract

import (
	"fmt"
	"strings"

	"github.com/sells-group/siteaudit/internal/model"
)

// RenderMarkdown serializes a digest into the deterministic, order-preserving
// markdown document sent to the scoring oracle. Sections with no data are
// omitted entirely, never emitted empty.
func RenderMarkdown(d *model.PageDigest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Page: %s\n", d.URL)

	if d.Meta.Title != "" {
		fmt.Fprintf(&b, "\n## Title\n%s\n", d.Meta.Title)
	}
	if d.Meta.Description != "" {
		fmt.Fprintf(&b, "\n## Meta Description\n%s\n", d.Meta.Description)
	}

	if d.Hero.Headline != "" || d.Hero.SubHeadline != "" || d.Hero.PrimaryCallToAction != "" {
		b.WriteString("\n## Hero\n")
		if d.Hero.Headline != "" {
			fmt.Fprintf(&b, "- Headline: %s\n", d.Hero.Headline)
		}
		if d.Hero.SubHeadline != "" {
			fmt.Fprintf(&b, "- Sub-headline: %s\n", d.Hero.SubHeadline)
		}
		if d.Hero.PrimaryCallToAction != "" {
			fmt.Fprintf(&b, "- Primary CTA: %s\n", d.Hero.PrimaryCallToAction)
		}
		fmt.Fprintf(&b, "- Hero image: %t\n", d.Hero.HasHeroImage)
	}

	writeList(&b, "Value Propositions", d.ValueProps)

	if len(d.Proof.Testimonials) > 0 || len(d.Proof.Stats) > 0 || d.Proof.HasLogos || len(d.Proof.Media) > 0 {
		b.WriteString("\n## Social Proof\n")
		for _, t := range d.Proof.Testimonials {
			fmt.Fprintf(&b, "- Testimonial: %s\n", t)
		}
		for _, s := range d.Proof.Stats {
			fmt.Fprintf(&b, "- Stat: %s\n", s)
		}
		if d.Proof.HasLogos {
			b.WriteString("- Client/partner logos present\n")
		}
		for _, m := range d.Proof.Media {
			fmt.Fprintf(&b, "- Media embed: %s\n", m)
		}
	}

	if d.Pricing.Displayed {
		fmt.Fprintf(&b, "\n## Pricing\n%s\n", d.Pricing.Text)
	}

	writeList(&b, "FAQ", d.FAQ)
	writeList(&b, "Calls To Action", d.CallsToAction)

	b.WriteString("\n## Trust Signals\n")
	fmt.Fprintf(&b, "- Company info: %t\n", d.TrustSignals.HasCompanyInfo)
	fmt.Fprintf(&b, "- Privacy policy: %t\n", d.TrustSignals.HasPrivacyPolicy)
	fmt.Fprintf(&b, "- Regulatory disclosure: %t\n", d.TrustSignals.HasRegulatoryDisclosure)
	fmt.Fprintf(&b, "- Contact: %t\n", d.TrustSignals.HasContact)

	writeList(&b, "Urgency Markers", d.UrgencyMarkers)

	if d.BodyText != "" {
		fmt.Fprintf(&b, "\n## Body Text\n%s\n", d.BodyText)
	}

	if len(d.CodeBlocks) > 0 {
		b.WriteString("\n## Code Blocks\n")
		for _, code := range d.CodeBlocks {
			fmt.Fprintf(&b, "```\n%s\n```\n", code)
		}
	}

	if len(d.Headings) > 0 {
		b.WriteString("\n## Heading Outline\n")
		for _, h := range d.Headings {
			indent := strings.Repeat("  ", h.Level-1)
			fmt.Fprintf(&b, "%s- H%d: %s\n", indent, h.Level, h.Text)
		}
	}

	var internal, external []model.Link
	for _, l := range d.Links {
		if l.Kind == model.LinkInternal {
			internal = append(internal, l)
		} else {
			external = append(external, l)
		}
	}
	if len(internal) > 0 || len(external) > 0 {
		b.WriteString("\n## Links\n")
		if len(internal) > 0 {
			b.WriteString("### Internal\n")
			for _, l := range internal {
				fmt.Fprintf(&b, "- [%s](%s)\n", l.Text, l.URL)
			}
		}
		if len(external) > 0 {
			b.WriteString("### External\n")
			for _, l := range external {
				fmt.Fprintf(&b, "- [%s](%s)\n", l.Text, l.URL)
			}
		}
	}

	if len(d.Tables) > 0 {
		b.WriteString("\n## Tables\n")
		for _, t := range d.Tables {
			writeTable(&b, t)
		}
	}

	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func writeTable(b *strings.Builder, t model.Table) {
	if len(t.Headers) > 0 {
		fmt.Fprintf(b, "| %s |\n", strings.Join(t.Headers, " | "))
		sep := make([]string, len(t.Headers))
		for i := range sep {
			sep[i] = "---"
		}
		fmt.Fprintf(b, "| %s |\n", strings.Join(sep, " | "))
	}
	for _, row := range t.Rows {
		fmt.Fprintf(b, "| %s |\n", strings.Join(row, " | "))
	}
	b.WriteString("\n")
}
