package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The matchers in this file are deliberately heuristic: the input is
// arbitrary, uncontrolled HTML, so detection is keyword- and pattern-driven.
// False positives are acceptable; missing an obviously-marked signal is not.
// Rules live here so they can be extended without touching the extraction
// control flow in extract.go.

// noiseSelectors are stripped before text extraction so boilerplate never
// reaches the digest body.
var noiseSelectors = []string{
	"script", "style", "noscript", "template",
	"nav", "footer", "aside",
	"iframe", "svg", "canvas",
	".sidebar", ".menu", ".navigation", ".cookie-banner", ".ads",
}

// valuePropDenylist excludes h2/h3 headings that belong to other page
// sections (FAQ, contact, boilerplate), not value propositions.
var valuePropDenylist = []string{
	"faq", "frequently asked", "question",
	"contact", "about us", "about",
	"privacy", "terms", "legal", "cookie",
	"login", "sign in", "newsletter", "subscribe",
}

// statPattern matches a number followed by a unit-like suffix: percentage,
// multiplier, count shorthand, or a count-noun. Currency is matched by
// currencyPattern since the symbol precedes the number.
var statPattern = regexp.MustCompile(
	`(?i)\d[\d,.]*\s*(%|percent|x\b|k\b|m\b|mil|million|billion|\+|users?|customers?|clients?|companies|countries|teams?|downloads?|installs?|reviews?|stars?|projects?|hours?|years?)`)

var currencyPattern = regexp.MustCompile(`[$€£]\s?\d[\d,.]*`)

// urgencyPatterns match scarcity and deadline language.
var urgencyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)limited[ -]time`),
	regexp.MustCompile(`(?i)only \d+ (left|remaining|spots?|seats?)`),
	regexp.MustCompile(`(?i)(ends?|expires?) (today|tonight|soon|in)`),
	regexp.MustCompile(`(?i)last chance`),
	regexp.MustCompile(`(?i)act now`),
	regexp.MustCompile(`(?i)hurry`),
	regexp.MustCompile(`(?i)don'?t miss`),
	regexp.MustCompile(`(?i)while (supplies|stocks?) last`),
	regexp.MustCompile(`(?i)(sale|offer) ends`),
}

// trustKeywords drive the four TrustSignals booleans. Matched against the
// full document text and link hrefs, before noise stripping, because these
// signals usually live in footers.
var trustKeywords = struct {
	company, privacy, regulatory, contact []string
}{
	company:    []string{"about us", "our team", "our story", "founded", "company", "impressum", "who we are"},
	privacy:    []string{"privacy policy", "privacy notice", "data protection"},
	regulatory: []string{"terms of service", "terms and conditions", "terms of use", "disclaimer", "disclosure", "gdpr", "regulated by", "licensed", "compliance"},
	contact:    []string{"contact us", "contact", "get in touch", "support@", "mailto:", "tel:"},
}

// matchesAny reports whether lower contains any of the keywords.
func matchesAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// isValuePropHeading filters h2/h3 text for the value-props field.
func isValuePropHeading(text string) bool {
	if text == "" || len(text) >= 100 {
		return false
	}
	return !matchesAny(strings.ToLower(text), valuePropDenylist)
}

// isStat reports whether a short text chunk reads like a marked statistic.
func isStat(text string) bool {
	if len(text) > 80 {
		return false
	}
	return statPattern.MatchString(text) || currencyPattern.MatchString(text)
}

// urgencyMatch returns the matched urgency phrase, or "".
func urgencyMatch(text string) string {
	if len(text) > 200 {
		return ""
	}
	for _, p := range urgencyPatterns {
		if m := p.FindString(text); m != "" {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

// isQuestion reports whether heading-like text reads as an FAQ entry.
func isQuestion(text string) bool {
	if text == "" || len(text) > 200 {
		return false
	}
	if strings.HasSuffix(text, "?") {
		return true
	}
	lower := strings.ToLower(text)
	for _, prefix := range []string{"how ", "what ", "why ", "when ", "where ", "can i ", "do i ", "is it "} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// hasLogoStrip detects client/partner logo sections.
func hasLogoStrip(doc *goquery.Document) bool {
	if doc.Find(`[class*="logos"], [class*="clients"], [class*="brands"], [class*="partners"], [class*="trusted-by"]`).Length() > 0 {
		return true
	}
	n := 0
	doc.Find(`img[alt]`).Each(func(_ int, s *goquery.Selection) {
		alt, _ := s.Attr("alt")
		if strings.Contains(strings.ToLower(alt), "logo") {
			n++
		}
	})
	return n >= 3
}

// leafText returns the trimmed text of s when s is a leaf element, else "".
func leafText(s *goquery.Selection) string {
	if s.Children().Length() > 0 {
		return ""
	}
	return collapseSpace(s.Text())
}

var spaceRe = regexp.MustCompile(`\s+`)

// collapseSpace trims and collapses runs of whitespace to single spaces.
func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
