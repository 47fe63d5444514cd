// internal/layout/layout.go
package layout

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-print-bridge/internal/codec"
	"pos-print-bridge/internal/escpos"
	"pos-print-bridge/internal/model"
)

const (
	// WrapLimit is the item name length carried on one line
	WrapLimit = 30

	// MinLogoBase64Length is the smallest encoded logo worth printing
	MinLogoBase64Length = 800

	// MinLogoDots is the narrowest width tried before giving up on the logo
	MinLogoDots = 128

	wideColumns    = 38
	wideLogoDots   = 576
	narrowLogoDots = 384
	wideReserve    = 12
	narrowReserve  = 10
	trailingFeeds  = 5
)

// Renderer turns receipt documents into printer command streams
type Renderer struct {
	logger *zap.Logger
}

// NewRenderer creates a renderer that logs logo decisions
func NewRenderer(logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{logger: logger.With(zap.String("component", "layout"))}
}

var defaultRenderer = NewRenderer(nil)

// Render lays out a receipt with the silent default renderer
func Render(doc *model.ReceiptDocument) escpos.Stream {
	return defaultRenderer.Render(doc)
}

// Render lays out doc. The result depends only on doc.
func (r *Renderer) Render(doc *model.ReceiptDocument) escpos.Stream {
	if doc == nil {
		doc = model.NewReceiptDocument()
	}
	width := doc.EffectiveWidth()
	rule := strings.Repeat("-", width)

	b := escpos.NewBuilder().Initialize().Codepage().Align(model.AlignLeft)

	if !doc.HasLogo() || !r.renderLogo(b, doc.LogoImage, width) {
		reserve := ReserveLines(width)
		b.Newlines(reserve)
		r.logger.Debug("Logo not printed, reserved blank lines", zap.Int("lines", reserve))
	}

	shopName := doc.ShopName
	if shopName == "" {
		shopName = model.DefaultShopName
	}
	b.Align(model.AlignCenter).Bold(true).Line(shopName).Bold(false)
	for _, line := range doc.HeaderLines {
		b.Line(line)
	}
	if doc.Phone != "" {
		b.Line("Tel: " + doc.Phone)
	}
	b.Newline()

	b.Align(model.AlignLeft).Line(rule)
	b.Line(LineLR(width, "Item", "Qty   Price"))
	b.Line(rule)

	total := decimal.Zero
	for _, item := range doc.Items {
		lineTotal := LineTotal(item)
		total = total.Add(lineTotal)

		for i, chunk := range WrapText(item.Name, WrapLimit) {
			if i == 0 {
				right := padLeft(FormatQuantity(item.Quantity), 3) + "  " + lineTotal.StringFixed(2)
				b.Line(LineLR(width, chunk, right))
				continue
			}
			b.Line(chunk)
		}
	}

	b.Line(rule)

	if len(doc.SummaryRows) > 0 {
		for _, row := range doc.SummaryRows {
			b.Line(LineLR(width, row.Label, row.Value))
		}
	} else {
		b.Bold(true).Line(LineLR(width, "TOTAL", total.StringFixed(2))).Bold(false)
	}
	b.Newline()

	if len(doc.Footers) > 0 {
		for _, footer := range doc.Footers {
			b.Align(footer.Alignment).Line(footer.Text)
		}
		b.Newline()
	}

	thanks := doc.ThankYouLine
	if thanks == "" {
		thanks = model.DefaultThankYouLine
	}
	b.Align(model.AlignCenter).Line(thanks)
	b.Newlines(trailingFeeds)
	b.Cut()

	return b.Build()
}

// renderLogo tries every width from the preferred one down to MinLogoDots and
// every raster technique at each width. It reports whether an image was added.
func (r *Renderer) renderLogo(b *escpos.Builder, logo []byte, width int) bool {
	if len(logo) == 0 {
		return false
	}
	if n := len(codec.EncodeBase64(logo)); n < MinLogoBase64Length {
		r.logger.Debug("Logo too small to print", zap.Int("base64_length", n))
		return false
	}

	img, err := escpos.DecodeImage(logo)
	if err != nil {
		r.logger.Warn("Failed to decode logo", zap.Error(err))
		return false
	}

	chain := escpos.RasterStrategies()
	for dots := PreferredLogoDots(width); dots >= MinLogoDots; dots -= 8 {
		res, err := chain.Run(context.Background(), escpos.RasterRequest{Image: img, Width: dots})
		if err != nil {
			continue
		}
		b.Align(model.AlignCenter).Image(res.Value).Newline()
		r.logger.Debug("Logo rasterized",
			zap.String("mode", res.Winner),
			zap.Int("dots", dots),
		)
		return true
	}

	r.logger.Warn("Logo could not be rasterized at any width")
	return false
}

// PreferredLogoDots returns the logo width for the paper, a multiple of 8
func PreferredLogoDots(width int) int {
	dots := narrowLogoDots
	if width > wideColumns {
		dots = wideLogoDots
	}
	return dots - dots%8
}

// ReserveLines returns the blank lines printed in place of a missing logo
func ReserveLines(width int) int {
	if width > wideColumns {
		return wideReserve
	}
	return narrowReserve
}

// LineLR left-justifies left and right-justifies right within width columns.
// At least one space separates them, so overlong content exceeds width.
func LineLR(width int, left, right string) string {
	spaces := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if spaces < 1 {
		spaces = 1
	}
	return left + strings.Repeat(" ", spaces) + right
}

// WrapText splits s into consecutive chunks of at most max characters
func WrapText(s string, max int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	if max <= 0 {
		return []string{s}
	}

	var out []string
	for len(runes) > max {
		out = append(out, string(runes[:max]))
		runes = runes[max:]
	}
	return append(out, string(runes))
}

// LineTotal returns quantity times unit price rounded to cents
func LineTotal(item model.ReceiptItem) decimal.Decimal {
	return decimal.NewFromFloat(item.Quantity).Mul(decimal.NewFromFloat(item.UnitPrice)).Round(2)
}

// Money formats n with exactly two fraction digits
func Money(n float64) string {
	return decimal.NewFromFloat(n).StringFixed(2)
}

// FormatQuantity prints a quantity the shortest exact way ("2", "1.5")
func FormatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func padLeft(s string, n int) string {
	if l := utf8.RuneCountInString(s); l < n {
		return strings.Repeat(" ", n-l) + s
	}
	return s
}
