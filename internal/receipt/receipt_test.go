// internal/receipt/receipt_test.go
package receipt

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"pos-print-bridge/internal/codec"
	"pos-print-bridge/internal/model"
)

func noisePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	rng := rand.New(rand.NewSource(7))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(rng.Intn(256))})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestParseMinimalFixture(t *testing.T) {
	doc, err := Parse(`{"data":[{"type":"header","data":{"top_title":"Shop"}}]}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.ShopName != "Shop" {
		t.Errorf("expected shop name Shop, got %q", doc.ShopName)
	}
	if doc.Width != 32 {
		t.Errorf("expected width 32, got %d", doc.Width)
	}
	if len(doc.Items) != 0 {
		t.Errorf("expected no items, got %d", len(doc.Items))
	}
	if doc.ThankYouLine != model.DefaultThankYouLine {
		t.Errorf("unexpected thank you line %q", doc.ThankYouLine)
	}
}

func TestParseCoffee(t *testing.T) {
	doc, err := Parse(`{"data":[{"type":"item","data":{"itemdata":[{"item_name":"Coffee","quantity":2,"item_amount":6}]}}]}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(doc.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(doc.Items))
	}
	item := doc.Items[0]
	if item.Name != "Coffee" || item.Quantity != 2 || item.UnitPrice != 3 {
		t.Errorf("unexpected item %+v", item)
	}
}

func TestParseInvalidJSON(t *testing.T) {
	for _, in := range []string{"", "{", "not json", `{"a":}`} {
		_, err := Parse(in)
		var pe *model.ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q): expected ParseError, got %v", in, err)
		}
	}
}

func TestParseNonObjectRootUsesDefaults(t *testing.T) {
	for _, in := range []string{"null", "[]", "42", `"text"`} {
		doc, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", in, err)
		}
		if doc.ShopName != model.DefaultShopName || doc.Width != model.DefaultReceiptWidth {
			t.Errorf("Parse(%q): expected defaults, got %+v", in, doc)
		}
	}
}

func TestParseWidth(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`48`, 48},
		{`"42"`, 42},
		{`"abc"`, 32},
		{`0`, 32},
		{`-5`, 32},
		{`null`, 32},
		{`{}`, 32},
		{`96`, 96},
		{`97`, 32},
		{`20000000`, 32},
		{`1e308`, 32},
	}
	for _, tt := range tests {
		doc, err := Parse(`{"item_length":` + tt.raw + `}`)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if doc.Width != tt.want {
			t.Errorf("item_length %s: width = %d, want %d", tt.raw, doc.Width, tt.want)
		}
	}
}

func TestParseHeader(t *testing.T) {
	doc, err := Parse(`{"data":[{"type":"HEADER","data":{
		"top_title":"Cafe",
		"sub_titles":["Best beans","Call 0771234567", 12],
		"address":["1 Main St","ignored"]
	}}]}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []string{"Best beans", "Call 0771234567", "12", "1 Main St"}
	if !reflect.DeepEqual(doc.HeaderLines, want) {
		t.Errorf("header lines = %q, want %q", doc.HeaderLines, want)
	}
	if doc.Phone != "Call 0771234567" {
		t.Errorf("phone = %q", doc.Phone)
	}
}

func TestParseItemsAreDefensive(t *testing.T) {
	doc, err := Parse(`{"data":[{"type":"item","data":{"itemdata":[
		{"name":"Tea","quantity":"3","total":"4.50"},
		{"quantity":"x","item_amount":5},
		{"item_name":"Refund","quantity":-1,"item_amount":-3},
		{"item_name":"Free","quantity":0,"item_amount":9}
	]}}]}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []model.ReceiptItem{
		{Name: "Tea", Quantity: 3, UnitPrice: 1.5},
		{Name: "Item", Quantity: 0, UnitPrice: 0},
		{Name: "Refund", Quantity: 0, UnitPrice: 0},
		{Name: "Free", Quantity: 0, UnitPrice: 0},
	}
	if !reflect.DeepEqual(doc.Items, want) {
		t.Errorf("items = %+v, want %+v", doc.Items, want)
	}
}

func TestParseSummaryShapes(t *testing.T) {
	want := []model.SummaryRow{{Label: "Sub", Value: "10"}, {Label: "Tax", Value: "1.5"}}

	tests := map[string]string{
		"rows":        `{"rows":[{"key":"Sub","value":10},{"key":"Tax","value":"1.5"}]}`,
		"keys/values": `{"keys":["Sub","Tax","Extra"],"values":[10,1.5]}`,
		"summary":     `{"summary":{"Sub":10,"Tax":1.5}}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			doc, err := Parse(`{"data":[{"type":"order_bigsummary","data":` + data + `}]}`)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if !reflect.DeepEqual(doc.SummaryRows, want) {
				t.Errorf("summary = %+v, want %+v", doc.SummaryRows, want)
			}
		})
	}
}

func TestParseFooters(t *testing.T) {
	doc, err := Parse(`{"data":[
		{"type":"footer","data":{"align":"center","footer_text":["Visit us",{"text":"Bye","align":"RIGHT"},{"align":"center"}]}},
		{"type":"footer","data":{"text":"Plain"}},
		{"type":"footer","data":"ignored"}
	]}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []model.FooterLine{
		{Text: "Visit us", Alignment: model.AlignCenter},
		{Text: "Bye", Alignment: model.AlignRight},
		{Text: "", Alignment: model.AlignCenter},
		{Text: "Plain", Alignment: model.AlignLeft},
	}
	if !reflect.DeepEqual(doc.Footers, want) {
		t.Errorf("footers = %+v, want %+v", doc.Footers, want)
	}
}

func TestParseThankYou(t *testing.T) {
	doc, _ := Parse(`{"thanks":"Cheers"}`)
	if doc.ThankYouLine != "Cheers" {
		t.Errorf("expected thanks fallback, got %q", doc.ThankYouLine)
	}
	doc, _ = Parse(`{"thankYou":"Merci","thanks":"Cheers"}`)
	if doc.ThankYouLine != "Merci" {
		t.Errorf("expected thankYou to win, got %q", doc.ThankYouLine)
	}
}

func TestDecodeLogoReferences(t *testing.T) {
	p, err := Decode(`{"data":[
		{"type":"header","data":{"logoBase64":"data:image/png;base64,AAAA"}},
		{"type":"logo","data":{"url":"https://example.com/logo.png"}}
	]}`)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if p.LogoBase64 != "data:image/png;base64,AAAA" || p.LogoURL != "https://example.com/logo.png" {
		t.Errorf("unexpected logo references %+v", p)
	}
}

func TestLogoResolverKeepsLargeEmbedded(t *testing.T) {
	embedded := codec.EncodeBase64(noisePNG(t))
	r := NewLogoResolver(LogoOptions{}, nil)
	if got := r.Resolve(context.Background(), LogoRequest{Embedded: embedded, URL: "http://127.0.0.1:1/x"}); got != embedded {
		t.Error("large embedded logo should win without trying other sources")
	}
}

func TestLogoResolverLocalAsset(t *testing.T) {
	dir := t.TempDir()
	logo := noisePNG(t)
	if err := os.WriteFile(filepath.Join(dir, "logo.png"), logo, 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}

	tests := map[string]LogoOptions{
		"file uri":  {AssetURI: "file://" + filepath.Join(dir, "logo.png")},
		"asset dir": {AssetDir: dir},
		"raw path":  {AssetURI: filepath.Join(dir, "logo.png"), AssetDir: t.TempDir()},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			got := NewLogoResolver(opts, nil).Resolve(context.Background(), LogoRequest{Embedded: "AAAA"})
			if got != codec.EncodeBase64(logo) {
				t.Errorf("expected local asset, got %d chars", len(got))
			}
		})
	}
}

func TestLogoResolverDownload(t *testing.T) {
	logo := noisePNG(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logo.png":
			w.Write(logo)
		case "/text":
			w.Write(bytes.Repeat([]byte("hello"), 400))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	r := NewLogoResolver(LogoOptions{}, nil)

	if got := r.Resolve(context.Background(), LogoRequest{URL: server.URL + "/logo.png"}); got != codec.EncodeBase64(logo) {
		t.Error("expected downloaded logo")
	}
	if got := r.Resolve(context.Background(), LogoRequest{Embedded: "AAAA", URL: server.URL + "/text"}); got != "AAAA" {
		t.Errorf("non-image download must keep embedded, got %q", got)
	}
	if got := r.Resolve(context.Background(), LogoRequest{URL: server.URL + "/missing"}); got != "" {
		t.Errorf("404 must keep embedded, got %q", got)
	}
}

func TestBuildSampleReceipt(t *testing.T) {
	b := NewBuilder(nil, nil)
	data, err := b.Build(context.Background(), SampleReceipt)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0x1B, 0x40}) {
		t.Error("receipt must start with initialize")
	}
	if !bytes.HasSuffix(data, []byte{0x1D, 0x56, 0x00}) {
		t.Error("receipt must end with a full cut")
	}
	if !bytes.Contains(data, []byte("ESMART CAFE")) {
		t.Error("shop name missing from output")
	}
}

func TestBuildInvalidJSON(t *testing.T) {
	_, err := NewBuilder(nil, nil).Build(context.Background(), "{oops")
	var pe *model.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}
