// internal/receipt/parse.go
package receipt

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"pos-print-bridge/internal/codec"
	"pos-print-bridge/internal/model"
)

var phonePattern = regexp.MustCompile(`\d{7,}`)

// logoKeys are the header fields that may carry an embedded logo, in priority order
var logoKeys = []string{"logo_base64", "logoBase64", "base64", "logo_base"}

// Payload is a parsed receipt plus the logo sources the document names
type Payload struct {
	Document   *model.ReceiptDocument
	LogoBase64 string
	LogoURL    string
}

// Parse converts receipt JSON into a document. Only text that is not JSON
// fails; every field read tolerates missing or mistyped values.
func Parse(jsonText string) (*model.ReceiptDocument, error) {
	p, err := Decode(jsonText)
	if err != nil {
		return nil, err
	}
	if p.LogoBase64 != "" {
		if logo, err := codec.DecodeBase64(p.LogoBase64); err == nil {
			p.Document.LogoImage = logo
		}
	}
	return p.Document, nil
}

// Decode parses receipt JSON and keeps the raw logo references for resolution
func Decode(jsonText string) (*Payload, error) {
	if !gjson.Valid(jsonText) {
		return nil, &model.ParseError{Err: errors.New("text is not valid JSON")}
	}

	root := gjson.Parse(jsonText)
	if !root.IsObject() {
		return &Payload{Document: model.NewReceiptDocument()}, nil
	}

	doc := model.NewReceiptDocument()
	payload := &Payload{Document: doc}
	blocks := arrayOf(root.Get("data"))

	doc.Width = parseWidth(root.Get("item_length"))

	header := objectOf(findBlock(blocks, func(t string) bool { return t == "header" }).Get("data"))
	if title := header.Get("top_title"); truthy(title) {
		doc.ShopName = jsString(title)
	}
	for _, key := range logoKeys {
		if v := header.Get(key); truthy(v) {
			payload.LogoBase64 = jsString(v)
			break
		}
	}

	subTitles := header.Get("sub_titles")
	for _, s := range arrayOf(subTitles) {
		doc.HeaderLines = append(doc.HeaderLines, jsString(s))
	}
	if address := arrayOf(header.Get("address")); len(address) > 0 {
		doc.HeaderLines = append(doc.HeaderLines, jsString(address[0]))
	}
	for _, s := range arrayOf(subTitles) {
		if text := jsString(s); phonePattern.MatchString(text) {
			doc.Phone = text
			break
		}
	}

	itemBlock := objectOf(findBlock(blocks, func(t string) bool { return t == "item" }).Get("data"))
	for _, row := range arrayOf(itemBlock.Get("itemdata")) {
		doc.Items = append(doc.Items, parseItem(row))
	}

	summaryBlock := findBlock(blocks, func(t string) bool { return strings.Contains(t, "bigsummary") }).Get("data")
	if truthy(summaryBlock) {
		doc.SummaryRows = parseSummary(summaryBlock)
	}

	for _, block := range blocks {
		if blockType(block) == "footer" {
			doc.Footers = append(doc.Footers, parseFooter(block.Get("data"))...)
		}
	}

	if v := firstTruthy(root.Get("thankYou"), root.Get("thanks")); v.Exists() {
		doc.ThankYouLine = jsString(v)
	}

	logoBlock := findBlock(blocks, func(t string) bool { return t == "logo" })
	if url := logoBlock.Get("data.url"); truthy(url) {
		payload.LogoURL = jsString(url)
	}

	return payload, nil
}

func parseWidth(v gjson.Result) int {
	if !truthy(v) {
		return model.DefaultReceiptWidth
	}
	n := jsNumber(v)
	if math.IsNaN(n) || n < 1 || n > model.MaxReceiptWidth {
		return model.DefaultReceiptWidth
	}
	return int(n)
}

func parseItem(row gjson.Result) model.ReceiptItem {
	qty := nonNegative(jsNumber(firstTruthy(row.Get("quantity"))))
	lineTotal := nonNegative(jsNumber(firstTruthy(row.Get("item_amount"), row.Get("total"))))

	price := 0.0
	if qty > 0 {
		price = lineTotal / qty
	}

	name := "Item"
	if v := firstTruthy(row.Get("item_name"), row.Get("name")); v.Exists() {
		name = jsString(v)
	}

	return model.ReceiptItem{Name: name, Quantity: qty, UnitPrice: price}
}

// parseSummary accepts rows of {key,value}, parallel keys/values arrays or a
// summary object. Document order is kept in every shape.
func parseSummary(block gjson.Result) []model.SummaryRow {
	rows := []model.SummaryRow{}

	if r := block.Get("rows"); r.IsArray() {
		for _, row := range r.Array() {
			key := ""
			if k := row.Get("key"); truthy(k) {
				key = jsString(k)
			}
			rows = append(rows, model.SummaryRow{Label: key, Value: valueOrEmpty(row.Get("value"))})
		}
		return rows
	}

	keys, values := block.Get("keys"), block.Get("values")
	if keys.IsArray() && values.IsArray() {
		ka, va := keys.Array(), values.Array()
		n := min(len(ka), len(va))
		for i := 0; i < n; i++ {
			rows = append(rows, model.SummaryRow{Label: jsString(ka[i]), Value: jsString(va[i])})
		}
		return rows
	}

	if summary := block.Get("summary"); summary.IsObject() {
		summary.ForEach(func(key, value gjson.Result) bool {
			rows = append(rows, model.SummaryRow{Label: key.String(), Value: jsString(value)})
			return true
		})
	}
	return rows
}

func parseFooter(data gjson.Result) []model.FooterLine {
	var lines []model.FooterLine
	blockAlign := alignOf(data.Get("align"))

	if text := data.Get("footer_text"); text.IsArray() {
		for _, line := range text.Array() {
			switch {
			case line.Type == gjson.String:
				lines = append(lines, model.FooterLine{Text: line.String(), Alignment: blockAlign})
			case line.IsObject():
				t := ""
				if v := line.Get("text"); truthy(v) {
					t = jsString(v)
				}
				lines = append(lines, model.FooterLine{Text: t, Alignment: alignOf(line.Get("align"))})
			}
		}
		return lines
	}

	if text := data.Get("text"); data.IsObject() && truthy(text) {
		lines = append(lines, model.FooterLine{Text: jsString(text), Alignment: blockAlign})
	}
	return lines
}

func alignOf(v gjson.Result) model.Alignment {
	if !truthy(v) {
		return model.AlignLeft
	}
	return model.ParseAlignment(jsString(v))
}

func findBlock(blocks []gjson.Result, match func(blockType string) bool) gjson.Result {
	for _, b := range blocks {
		if match(blockType(b)) {
			return b
		}
	}
	return gjson.Result{}
}

func blockType(b gjson.Result) string {
	t := b.Get("type")
	if !truthy(t) {
		return ""
	}
	return strings.ToLower(jsString(t))
}

func arrayOf(v gjson.Result) []gjson.Result {
	if !v.IsArray() {
		return nil
	}
	return v.Array()
}

// objectOf returns v when it is an object and an empty result otherwise,
// so lookups on it simply find nothing.
func objectOf(v gjson.Result) gjson.Result {
	if !v.IsObject() {
		return gjson.Result{}
	}
	return v
}

func firstTruthy(values ...gjson.Result) gjson.Result {
	for _, v := range values {
		if truthy(v) {
			return v
		}
	}
	return gjson.Result{}
}

func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	case gjson.True, gjson.JSON:
		return true
	}
	return false
}

// jsNumber converts loosely: numeric strings parse, booleans map to 0/1,
// null is 0 and anything else is NaN.
func jsNumber(v gjson.Result) float64 {
	switch v.Type {
	case gjson.Number:
		return v.Num
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return 0
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return n
	case gjson.True:
		return 1
	case gjson.False, gjson.Null:
		return 0
	}
	return math.NaN()
}

// jsString renders a value the way it reads on paper
func jsString(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	case gjson.Null:
		return "null"
	case gjson.JSON:
		if v.IsArray() {
			parts := make([]string, 0)
			for _, e := range v.Array() {
				if e.Type == gjson.Null {
					parts = append(parts, "")
					continue
				}
				parts = append(parts, jsString(e))
			}
			return strings.Join(parts, ",")
		}
		return "[object Object]"
	}
	return ""
}

func valueOrEmpty(v gjson.Result) string {
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	return jsString(v)
}

func nonNegative(n float64) float64 {
	if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0
	}
	return n
}
