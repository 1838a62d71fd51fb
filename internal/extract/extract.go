// Package extract turns a rendered DOM snapshot into a bounded,
// deduplicated PageDigest. Extraction is a pure function of its inputs: it
// performs no I/O and never fails — malformed markup degrades to empty
// fields, and an empty body text is valid output surfaced as data.
package extract

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/siteaudit/internal/model"
)

// minParagraphLen filters boilerplate fragments out of body text.
const minParagraphLen = 30

// ctaSelector matches button-like elements and links styled as buttons.
const ctaSelector = `button, a[class*="btn"], a[class*="button"], a[class*="cta"], input[type="submit"]`

// Extract walks the DOM snapshot and builds the digest. Every bounded
// collection is deduplicated by exact string equality before its cap is
// applied, keeping first-encountered (document-order) elements.
func Extract(html, sourceURL string) *model.PageDigest {
	d := &model.PageDigest{URL: sourceURL}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return d
	}

	// Meta, trust signals, and media embeds are read from the full
	// document: trust keywords usually live in footers and media in
	// iframes, both of which the noise pass removes.
	d.Meta = extractMeta(doc)
	d.TrustSignals = extractTrust(doc)
	d.Proof.Media = extractMedia(doc)

	doc.Find("head").Remove()
	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	d.Headings = extractHeadings(doc)
	d.Hero = extractHero(doc)
	d.ValueProps = extractValueProps(doc)
	d.Proof.Testimonials = extractTestimonials(doc)
	d.Proof.Stats = extractStats(doc)
	d.Proof.HasLogos = hasLogoStrip(doc)
	d.Pricing = extractPricing(doc)
	d.FAQ = extractFAQ(doc)
	d.UrgencyMarkers = extractUrgency(doc)
	d.CallsToAction = extractCTAs(doc)
	d.BodyText = extractBodyText(doc)
	d.CodeBlocks = extractCodeBlocks(doc)
	d.Links = extractLinks(doc, sourceURL)
	d.Tables = extractTables(doc)

	return d
}

func extractMeta(doc *goquery.Document) model.PageMeta {
	meta := model.PageMeta{
		Title: collapseSpace(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		meta.Description = collapseSpace(desc)
	}
	return meta
}

func extractTrust(doc *goquery.Document) model.TrustSignals {
	var sb strings.Builder
	sb.WriteString(doc.Text())
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			sb.WriteString(" ")
			sb.WriteString(href)
		}
	})
	lower := strings.ToLower(sb.String())

	return model.TrustSignals{
		HasCompanyInfo:          matchesAny(lower, trustKeywords.company),
		HasPrivacyPolicy:        matchesAny(lower, trustKeywords.privacy),
		HasRegulatoryDisclosure: matchesAny(lower, trustKeywords.regulatory),
		HasContact:              matchesAny(lower, trustKeywords.contact),
	}
}

func extractMedia(doc *goquery.Document) []string {
	var media []string
	doc.Find(`iframe[src], video[src], video source[src], audio[src]`).Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			media = append(media, strings.TrimSpace(src))
		}
	})
	return dedupeCap(media, model.MaxMedia)
}

func extractHeadings(doc *goquery.Document) []model.Heading {
	var headings []model.Heading
	seen := make(map[string]bool)

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := collapseSpace(s.Text())
		if text == "" || len(text) >= 200 {
			return
		}
		level := int(goquery.NodeName(s)[1] - '0')
		key := fmt.Sprintf("%d|%s", level, text)
		if seen[key] {
			return
		}
		seen[key] = true
		headings = append(headings, model.Heading{Level: level, Text: text})
	})

	if len(headings) > model.MaxHeadings {
		headings = headings[:model.MaxHeadings]
	}
	return headings
}

func extractHero(doc *goquery.Document) model.Hero {
	var hero model.Hero

	h1 := doc.Find("h1").First()
	if h1.Length() == 0 {
		return hero
	}
	hero.Headline = collapseSpace(h1.Text())

	container := h1.Closest("section, header, div")
	if container.Length() == 0 {
		return hero
	}

	if sub := collapseSpace(container.Find("p").First().Text()); len(sub) < 200 {
		hero.SubHeadline = sub
	}
	if cta := collapseSpace(container.Find(ctaSelector).First().Text()); len(cta) < 80 {
		hero.PrimaryCallToAction = cta
	}
	hero.HasHeroImage = container.Find("img").Length() > 0

	return hero
}

func extractValueProps(doc *goquery.Document) []string {
	var props []string
	doc.Find("h2, h3").Each(func(_ int, s *goquery.Selection) {
		text := collapseSpace(s.Text())
		if isValuePropHeading(text) {
			props = append(props, text)
		}
	})
	return dedupeCap(props, model.MaxValueProps)
}

func extractTestimonials(doc *goquery.Document) []string {
	var quotes []string
	doc.Find(`blockquote, [class*="testimonial"], [class*="review"]`).Each(func(_ int, s *goquery.Selection) {
		text := collapseSpace(s.Text())
		if len(text) >= 20 && len(text) <= 400 {
			quotes = append(quotes, text)
		}
	})
	return dedupeCap(quotes, model.MaxTestimonials)
}

func extractStats(doc *goquery.Document) []string {
	var stats []string
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		text := leafText(s)
		if text != "" && isStat(text) {
			stats = append(stats, text)
		}
	})
	return dedupeCap(stats, model.MaxStats)
}

func extractPricing(doc *goquery.Document) model.Pricing {
	var pricing model.Pricing

	section := doc.Find(`[class*="pricing"], [id*="pricing"], [class*="price"]`).First()
	if section.Length() == 0 {
		return pricing
	}
	pricing.Displayed = true
	pricing.Text = truncate(collapseSpace(section.Text()), model.MaxPricingText)
	return pricing
}

func extractFAQ(doc *goquery.Document) []string {
	var questions []string
	doc.Find(`h2, h3, h4, h5, h6, summary, dt, [class*="faq"] li`).Each(func(_ int, s *goquery.Selection) {
		text := collapseSpace(s.Text())
		if isQuestion(text) {
			questions = append(questions, text)
		}
	})
	return dedupeCap(questions, model.MaxFAQ)
}

func extractUrgency(doc *goquery.Document) []string {
	var markers []string
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		text := leafText(s)
		if text == "" {
			return
		}
		if m := urgencyMatch(text); m != "" {
			markers = append(markers, m)
		}
	})
	return dedupeCap(markers, model.MaxUrgency)
}

func extractCTAs(doc *goquery.Document) []string {
	var ctas []string
	doc.Find(ctaSelector).Each(func(_ int, s *goquery.Selection) {
		text := collapseSpace(s.Text())
		if text == "" {
			if val, ok := s.Attr("value"); ok {
				text = collapseSpace(val)
			}
		}
		if len(text) >= 2 && len(text) <= 60 {
			ctas = append(ctas, text)
		}
	})
	return dedupeCap(ctas, model.MaxCTAs)
}

// extractBodyText prefers paragraphs under semantic content containers.
// Many sites never use them, so an unscoped fallback keeps the body from
// coming back empty and defeating the whole pipeline.
func extractBodyText(doc *goquery.Document) string {
	scoped := doc.Find(`article p, main p, section p, [class*="content"] p, [class*="post"] p, [class*="entry"] p, [class*="prose"] p`)
	if scoped.Length() == 0 {
		scoped = doc.Find("p")
	}

	var paras []string
	scoped.Each(func(_ int, s *goquery.Selection) {
		text := collapseSpace(s.Text())
		if len(text) >= minParagraphLen {
			paras = append(paras, text)
		}
	})
	paras = dedupeCap(paras, len(paras))

	return truncate(strings.Join(paras, "\n\n"), model.MaxBodyText)
}

func extractCodeBlocks(doc *goquery.Document) []string {
	var blocks []string
	doc.Find("pre").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) >= model.MinCodeBlockLen && len(text) <= model.MaxCodeBlockLen {
			blocks = append(blocks, text)
		}
	})
	return dedupeCap(blocks, model.MaxCodeBlocks)
}

// extractLinks resolves hrefs against the source URL and classifies them by
// hostname. Malformed hrefs are silently dropped.
func extractLinks(doc *goquery.Document, sourceURL string) []model.Link {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil
	}
	sourceHost := strings.ToLower(base.Hostname())

	var links []model.Link
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if len(links) >= model.MaxLinks {
			return
		}
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""

		abs := resolved.String()
		if seen[abs] {
			return
		}
		seen[abs] = true

		kind := model.LinkExternal
		if strings.EqualFold(resolved.Hostname(), sourceHost) {
			kind = model.LinkInternal
		}

		text := truncate(collapseSpace(s.Text()), 100)
		links = append(links, model.Link{Kind: kind, URL: abs, Text: text})
	})

	return links
}

func extractTables(doc *goquery.Document) []model.Table {
	var tables []model.Table

	doc.Find("table").Each(func(_ int, t *goquery.Selection) {
		if len(tables) >= model.MaxTables {
			return
		}

		rows := t.Find("tr")
		if rows.Length() == 0 {
			return
		}

		// Header row: explicit thead markup wins, else the first row. The
		// header row is excluded from data rows either way.
		headerRow := t.Find("thead tr").First()
		if headerRow.Length() == 0 {
			headerRow = rows.First()
		}

		var table model.Table
		headerRow.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			table.Headers = append(table.Headers, collapseSpace(cell.Text()))
		})

		headerNode := headerRow.Get(0)
		rows.Each(func(_ int, tr *goquery.Selection) {
			if tr.Get(0) == headerNode {
				return
			}
			var row []string
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				row = append(row, collapseSpace(cell.Text()))
			})
			if len(row) > 0 {
				table.Rows = append(table.Rows, row)
			}
		})

		if len(table.Headers) > 0 || len(table.Rows) > 0 {
			tables = append(tables, table)
		}
	})

	return tables
}

// truncate caps s at max bytes without splitting a multi-byte rune: the cut
// point backs up to the nearest rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// dedupeCap removes exact duplicates (keeping first occurrence) and then
// applies the cap. Dedup always happens before truncation.
func dedupeCap(items []string, max int) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}
