// internal/model/receipt.go
package model

import "strings"

// Alignment represents horizontal text alignment on the paper
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// ParseAlignment maps a loose alignment string to an Alignment, defaulting to left
func ParseAlignment(s string) Alignment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "center":
		return AlignCenter
	case "right":
		return AlignRight
	default:
		return AlignLeft
	}
}

const (
	DefaultReceiptWidth = 32
	MaxReceiptWidth     = 96
	DefaultShopName     = "RECEIPT"
	DefaultThankYouLine = "Thank you!"
)

// ReceiptDocument is the normalized receipt handed to the layout engine
type ReceiptDocument struct {
	Width        int           `json:"width"`
	LogoImage    []byte        `json:"logo_image,omitempty"`
	ShopName     string        `json:"shop_name"`
	HeaderLines  []string      `json:"header_lines"`
	Phone        string        `json:"phone,omitempty"`
	Items        []ReceiptItem `json:"items"`
	SummaryRows  []SummaryRow  `json:"summary_rows"`
	Footers      []FooterLine  `json:"footers"`
	ThankYouLine string        `json:"thank_you_line"`
}

// ReceiptItem is a single sold line
type ReceiptItem struct {
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// SummaryRow is a label/value pair printed left/right justified
type SummaryRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FooterLine is a footer text with its own alignment
type FooterLine struct {
	Text      string    `json:"text"`
	Alignment Alignment `json:"alignment"`
}

// NewReceiptDocument returns a document carrying all defaults
func NewReceiptDocument() *ReceiptDocument {
	return &ReceiptDocument{
		Width:        DefaultReceiptWidth,
		ShopName:     DefaultShopName,
		HeaderLines:  []string{},
		Items:        []ReceiptItem{},
		SummaryRows:  []SummaryRow{},
		Footers:      []FooterLine{},
		ThankYouLine: DefaultThankYouLine,
	}
}

// EffectiveWidth returns the column count, falling back to the default
// for widths outside 1..MaxReceiptWidth
func (d *ReceiptDocument) EffectiveWidth() int {
	if d.Width <= 0 || d.Width > MaxReceiptWidth {
		return DefaultReceiptWidth
	}
	return d.Width
}

// HasLogo reports whether logo bytes are attached
func (d *ReceiptDocument) HasLogo() bool {
	return len(d.LogoImage) > 0
}
