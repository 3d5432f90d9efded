package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// heuristic inspects a document and returns whatever fields it can resolve.
// Heuristics never fail; an unusable source yields an empty Metadata.
type heuristic func(doc *goquery.Document) Metadata

// cascade lists heuristics in priority order. A field resolved by an earlier
// heuristic is never overwritten by a later one.
var cascade = []heuristic{
	structuredData,
	metaTags,
}

// priceMetaProperties are checked in order, product-specific first.
var priceMetaProperties = []string{
	"product:price:amount",
	"og:price:amount",
}

// FromDocument runs the extraction cascade over a parsed page.
func FromDocument(doc *goquery.Document) Metadata {
	var m Metadata
	for _, h := range cascade {
		m = m.fill(h(doc))
		if m.complete() {
			break
		}
	}
	return m
}

// structuredData reads the first JSON-LD block on the page.
func structuredData(doc *goquery.Document) Metadata {
	raw := strings.TrimSpace(doc.Find(`script[type="application/ld+json"]`).First().Text())
	if raw == "" {
		return Metadata{}
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return Metadata{}
	}

	product := firstObject(payload)
	if product == nil {
		return Metadata{}
	}

	var m Metadata
	if offers := firstObject(product["offers"]); offers != nil {
		m.Price = strictPrice(offers["price"])
	}
	if !m.Price.Valid {
		m.Price = strictPrice(product["price"])
	}
	m.ImageURL = imageRef(product["image"])
	return m
}

// metaTags reads Open Graph style price and image properties.
func metaTags(doc *goquery.Document) Metadata {
	var m Metadata
	for _, prop := range priceMetaProperties {
		if content, ok := metaContent(doc, prop); ok {
			if p := loosePrice(content); p.Valid {
				m.Price = p
				break
			}
		}
	}
	if content, ok := metaContent(doc, "og:image"); ok {
		m.ImageURL = content
	}
	return m
}

func metaContent(doc *goquery.Document, property string) (string, bool) {
	content, ok := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	content = strings.TrimSpace(content)
	return content, ok && content != ""
}

// firstObject returns v as a JSON object, taking the first element of a list.
func firstObject(v any) map[string]any {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		v = list[0]
	}
	obj, _ := v.(map[string]any)
	return obj
}

// imageRef accepts a URL string, a list whose first element is one, or an
// ImageObject carrying a url.
func imageRef(v any) string {
	switch img := v.(type) {
	case string:
		return strings.TrimSpace(img)
	case []any:
		if len(img) > 0 {
			return imageRef(img[0])
		}
	case map[string]any:
		if u, ok := img["url"].(string); ok {
			return strings.TrimSpace(u)
		}
	}
	return ""
}

// strictPrice coerces a JSON number or numeric string.
func strictPrice(v any) decimal.NullDecimal {
	var s string
	switch p := v.(type) {
	case json.Number:
		s = p.String()
	case string:
		s = strings.TrimSpace(p)
	default:
		return decimal.NullDecimal{}
	}
	return parsePrice(s)
}

// loosePrice strips currency symbols, thousands separators and any other
// non-numeric text before parsing.
func loosePrice(s string) decimal.NullDecimal {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
	return parsePrice(cleaned)
}

func parsePrice(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
