// internal/layout/layout_test.go
package layout

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"strings"
	"testing"

	"pos-print-bridge/internal/escpos"
	"pos-print-bridge/internal/model"
)

func encode(t *testing.T, s escpos.Stream) []byte {
	t.Helper()
	out, err := escpos.Encode(s)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return out
}

func findLine(lines []string, prefix string) (string, bool) {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return l, true
		}
	}
	return "", false
}

func TestLineLR(t *testing.T) {
	tests := []struct {
		width       int
		left, right string
		want        string
	}{
		{10, "ab", "cd", "ab      cd"},
		{32, "Item", "Qty   Price", "Item" + strings.Repeat(" ", 17) + "Qty   Price"},
		// overflow keeps one separating space and exceeds the width
		{10, "ABCDEFGHIJ", "X", "ABCDEFGHIJ X"},
		{5, "", "", "     "},
	}
	for _, tt := range tests {
		if got := LineLR(tt.width, tt.left, tt.right); got != tt.want {
			t.Errorf("LineLR(%d, %q, %q) = %q, want %q", tt.width, tt.left, tt.right, got, tt.want)
		}
	}
}

func TestWrapText(t *testing.T) {
	if got := WrapText("", 30); len(got) != 0 {
		t.Errorf("empty text should produce no lines, got %v", got)
	}
	long := strings.Repeat("a", 65)
	got := WrapText(long, 30)
	if len(got) != 3 || len(got[0]) != 30 || len(got[1]) != 30 || len(got[2]) != 5 {
		t.Errorf("unexpected wrap: %q", got)
	}
}

func TestEmptyReceiptTotalsZero(t *testing.T) {
	stream := Render(model.NewReceiptDocument())

	line, ok := findLine(stream.Lines(), "TOTAL")
	if !ok {
		t.Fatal("TOTAL line missing")
	}
	if !strings.HasSuffix(line, "0.00") {
		t.Errorf("expected TOTAL 0.00, got %q", line)
	}
}

func TestCoffeeLine(t *testing.T) {
	doc := model.NewReceiptDocument()
	doc.Items = []model.ReceiptItem{{Name: "Coffee", Quantity: 2, UnitPrice: 3}}

	lines := Render(doc).Lines()
	line, ok := findLine(lines, "Coffee")
	if !ok {
		t.Fatal("item line missing")
	}
	want := LineLR(32, "Coffee", "  2  6.00")
	if line != want {
		t.Errorf("item line = %q, want %q", line, want)
	}
	total, _ := findLine(lines, "TOTAL")
	if !strings.HasSuffix(total, " 6.00") {
		t.Errorf("unexpected total line %q", total)
	}
}

func TestTotalIsSumOfRoundedLineTotals(t *testing.T) {
	doc := model.NewReceiptDocument()
	// each line rounds up from x.xx5, so the sum of rounded lines differs from the rounded sum
	doc.Items = []model.ReceiptItem{
		{Name: "A", Quantity: 1, UnitPrice: 0.125},
		{Name: "B", Quantity: 1, UnitPrice: 0.125},
		{Name: "C", Quantity: 1, UnitPrice: 0.125},
	}

	total, ok := findLine(Render(doc).Lines(), "TOTAL")
	if !ok {
		t.Fatal("TOTAL line missing")
	}
	if !strings.HasSuffix(total, " 0.39") {
		t.Errorf("expected 0.39 (3 x 0.13), got %q", total)
	}
}

func TestSummaryRowsReplaceTotal(t *testing.T) {
	doc := model.NewReceiptDocument()
	doc.Items = []model.ReceiptItem{{Name: "Tea", Quantity: 1, UnitPrice: 2}}
	doc.SummaryRows = []model.SummaryRow{{Label: "Subtotal", Value: "2.00"}, {Label: "Grand", Value: "2.00"}}

	stream := Render(doc)
	if _, ok := findLine(stream.Lines(), "TOTAL"); ok {
		t.Error("TOTAL must not be printed when summary rows exist")
	}
	if _, ok := findLine(stream.Lines(), "Subtotal"); !ok {
		t.Error("summary row missing")
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	doc := model.NewReceiptDocument()
	doc.ShopName = "Shop"
	doc.HeaderLines = []string{"Main street 1"}
	doc.Phone = "0771234567"
	doc.Items = []model.ReceiptItem{
		{Name: "A very long item name that certainly wraps around", Quantity: 1.5, UnitPrice: 2.2},
	}
	doc.Footers = []model.FooterLine{{Text: "Come again", Alignment: model.AlignRight}}

	first := encode(t, Render(doc))
	second := encode(t, Render(doc))
	if !bytes.Equal(first, second) {
		t.Fatal("rendering twice produced different bytes")
	}
}

func TestTinyLogoReservesBlankLines(t *testing.T) {
	tests := []struct {
		width   int
		reserve int
	}{
		{32, 10},
		{48, 12},
	}
	for _, tt := range tests {
		doc := model.NewReceiptDocument()
		doc.Width = tt.width
		doc.LogoImage = []byte{0x89, 'P', 'N', 'G'}

		stream := Render(doc)
		if n := stream.Count(escpos.OpImage); n != 0 {
			t.Fatalf("width %d: expected no image op, got %d", tt.width, n)
		}

		ops := stream.Ops()
		// initialize, codepage, align, then the reserved feeds
		feeds := 0
		for _, op := range ops[3:] {
			if op.Kind != escpos.OpNewline {
				break
			}
			feeds++
		}
		if feeds != tt.reserve {
			t.Errorf("width %d: expected %d reserved lines, got %d", tt.width, tt.reserve, feeds)
		}
	}
}

func TestLogoIsRasterized(t *testing.T) {
	// noise keeps the PNG large enough to pass the size gate
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	rng := rand.New(rand.NewSource(1))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(rng.Intn(256))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}

	doc := model.NewReceiptDocument()
	doc.LogoImage = buf.Bytes()

	stream := Render(doc)
	if n := stream.Count(escpos.OpImage); n != 1 {
		t.Fatalf("expected one image op, got %d", n)
	}
	for _, op := range stream.Ops() {
		if op.Kind == escpos.OpImage && op.Image.Width != 384 {
			t.Errorf("expected 384 dots on narrow paper, got %d", op.Image.Width)
		}
	}
}

func TestStreamShape(t *testing.T) {
	doc := model.NewReceiptDocument()
	ops := Render(doc).Ops()

	if ops[0].Kind != escpos.OpInitialize || ops[1].Kind != escpos.OpCodepage {
		t.Fatalf("stream must start with initialize and codepage, got %v %v", ops[0].Kind, ops[1].Kind)
	}
	if last := ops[len(ops)-1]; last.Kind != escpos.OpCut {
		t.Fatalf("stream must end with a cut, got %v", last.Kind)
	}
	for i := len(ops) - 6; i < len(ops)-1; i++ {
		if ops[i].Kind != escpos.OpNewline {
			t.Errorf("expected 5 trailing feeds before the cut, op %d is %v", i, ops[i].Kind)
		}
	}
}

func TestMoneyRounding(t *testing.T) {
	tests := map[float64]string{
		0:      "0.00",
		6:      "6.00",
		2.005:  "2.01",
		-1.005: "-1.01",
		1234.5: "1234.50",
	}
	for in, want := range tests {
		if got := Money(in); got != want {
			t.Errorf("Money(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestOversizedWidthFallsBackToDefault(t *testing.T) {
	doc := model.NewReceiptDocument()
	doc.Width = 20000000

	out := encode(t, Render(doc))
	if len(out) > 4096 {
		t.Fatalf("expected a default-width receipt, got %d bytes", len(out))
	}
	rule := strings.Repeat("-", model.DefaultReceiptWidth)
	if !bytes.Contains(out, []byte(rule+"\n")) || bytes.Contains(out, []byte(rule+"-")) {
		t.Errorf("expected %d-column rules in output", model.DefaultReceiptWidth)
	}
}
