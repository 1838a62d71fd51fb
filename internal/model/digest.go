// Package model defines the data types shared across the audit pipeline.
package model

// Caps on the bounded PageDigest collections. Every cap is enforced at
// construction time by the extractor; downstream code may rely on them.
const (
	MaxValueProps   = 10
	MaxTestimonials = 5
	MaxStats        = 10
	MaxMedia        = 5
	MaxFAQ          = 10
	MaxUrgency      = 5
	MaxCTAs         = 10
	MaxHeadings     = 30
	MaxLinks        = 20
	MaxTables       = 10
	MaxCodeBlocks   = 10
	MaxBodyText     = 5000
	MaxPricingText  = 500

	MinCodeBlockLen = 20
	MaxCodeBlockLen = 3000
)

// PageDigest is the bounded, deduplicated structural summary of a rendered
// page. It is the unit serialized into the scoring prompt, and its BodyText
// is the input to the content fingerprint.
type PageDigest struct {
	URL            string       `json:"url"`
	Hero           Hero         `json:"hero"`
	ValueProps     []string     `json:"value_props,omitempty"`
	Proof          Proof        `json:"proof"`
	Pricing        Pricing      `json:"pricing"`
	FAQ            []string     `json:"faq,omitempty"`
	TrustSignals   TrustSignals `json:"trust_signals"`
	UrgencyMarkers []string     `json:"urgency_markers,omitempty"`
	CallsToAction  []string     `json:"calls_to_action,omitempty"`
	Meta           PageMeta     `json:"meta"`
	Screenshot     []byte       `json:"screenshot,omitempty"`
	BodyText       string       `json:"body_text"`
	CodeBlocks     []string     `json:"code_blocks,omitempty"`
	Headings       []Heading    `json:"headings,omitempty"`
	Links          []Link       `json:"links,omitempty"`
	Tables         []Table      `json:"tables,omitempty"`
}

// Hero summarizes the first screen of the page.
type Hero struct {
	Headline            string `json:"headline,omitempty"`
	SubHeadline         string `json:"sub_headline,omitempty"`
	PrimaryCallToAction string `json:"primary_cta,omitempty"`
	HasHeroImage        bool   `json:"has_hero_image"`
}

// Proof groups social-proof elements found on the page.
type Proof struct {
	Testimonials []string `json:"testimonials,omitempty"`
	Stats        []string `json:"stats,omitempty"`
	HasLogos     bool     `json:"has_logos"`
	Media        []string `json:"media,omitempty"`
}

// Pricing records whether pricing is displayed and its visible text.
type Pricing struct {
	Displayed bool   `json:"displayed"`
	Text      string `json:"text,omitempty"`
}

// TrustSignals are keyword-derived booleans about page trustworthiness.
type TrustSignals struct {
	HasCompanyInfo          bool `json:"has_company_info"`
	HasPrivacyPolicy        bool `json:"has_privacy_policy"`
	HasRegulatoryDisclosure bool `json:"has_regulatory_disclosure"`
	HasContact              bool `json:"has_contact"`
}

// PageMeta holds the document title and meta description.
type PageMeta struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Heading is a single h1-h6 element in document order. Order is
// load-bearing for heading-hierarchy checks; callers must not re-sort.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// LinkKind classifies a link by hostname against the source URL.
type LinkKind string

const (
	LinkInternal LinkKind = "internal"
	LinkExternal LinkKind = "external"
)

// Link is a classified hyperlink with its resolved absolute URL.
type Link struct {
	Kind LinkKind `json:"kind"`
	URL  string   `json:"url"`
	Text string   `json:"text,omitempty"`
}

// Table is an extracted table with its header row separated from data rows.
type Table struct {
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
}
