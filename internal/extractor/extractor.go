// Package extractor turns one parsed upstream sailing document into the four
// cabin-category prices.  The feed has shipped at least four structurally
// different document shapes over the years; Extract tries a fixed precedence
// of shapes per category and stops at the first one that yields a usable
// price.  One document may satisfy different categories from different
// shapes, so the precedence runs independently per category.
//
// Extract is a pure function: same document in, same tuple out, no hidden
// state.  Upstream quirks are documented where they are handled — in
// particular a price of zero (or a non-numeric string) means "not offered",
// never a real price.
package extractor

import (
	"strconv"
	"strings"
)

// Document is one parsed sailing file.  Schemas vary, so it stays an opaque
// JSON object and the strategies probe it field by field.
type Document map[string]interface{}

// PriceTuple holds the cheapest price per cabin category.  nil means the
// category is not offered (or no shape yielded a usable value).
type PriceTuple struct {
	Interior  *float64
	Oceanview *float64
	Balcony   *float64
	Suite     *float64
}

// Empty reports whether no category carries a price.
func (t PriceTuple) Empty() bool {
	return t.Interior == nil && t.Oceanview == nil && t.Balcony == nil && t.Suite == nil
}

// category pairs the internal cabin name with the key the feed uses for it.
type category struct {
	name    string // internal name: interior, oceanview, balcony, suite
	feedKey string // upstream key: inside, outside, balcony, suite
}

var categories = []category{
	{name: "interior", feedKey: "inside"},
	{name: "oceanview", feedKey: "outside"},
	{name: "balcony", feedKey: "balcony"},
	{name: "suite", feedKey: "suite"},
}

// strategy attempts to produce a price for one category from one document
// shape.  Returning nil means "this shape has nothing usable, fall through".
type strategy func(doc Document, c category) *float64

// strategies in precedence order.  First non-nil result per category wins.
var strategies = []strategy{
	fromTopLevel,
	fromNested("combined"),
	fromNested("prices"),
	fromNested("cachedprices"),
	fromRateMatrix,
}

// Extract applies the strategy precedence per category and returns the
// resulting tuple.  It never mutates the document.
func Extract(doc Document) PriceTuple {
	var t PriceTuple
	for _, c := range categories {
		var price *float64
		for _, s := range strategies {
			if price = s(doc, c); price != nil {
				break
			}
		}
		switch c.name {
		case "interior":
			t.Interior = price
		case "oceanview":
			t.Oceanview = price
		case "balcony":
			t.Balcony = price
		case "suite":
			t.Suite = price
		}
	}
	return t
}

// AdjustForLine applies the per-line unit correction.  Exactly one provider
// delivers prices multiplied by 1000; the flag lives on the cruise_lines row
// so the special case stays named and explicit rather than heuristic.
func AdjustForLine(t PriceTuple, divideBy1000 bool) PriceTuple {
	if !divideBy1000 {
		return t
	}
	div := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		v := *p / 1000
		return &v
	}
	return PriceTuple{
		Interior:  div(t.Interior),
		Oceanview: div(t.Oceanview),
		Balcony:   div(t.Balcony),
		Suite:     div(t.Suite),
	}
}

// fromTopLevel reads the legacy scalar fields: cheapestinside,
// cheapestoutside, cheapestbalcony, cheapestsuite.
func fromTopLevel(doc Document, c category) *float64 {
	return parsePrice(doc["cheapest"+c.feedKey])
}

// fromNested returns a strategy reading cheapest.<section>.<category>, which
// covers the combined, static-prices and cached-live-prices shapes.
func fromNested(section string) strategy {
	return func(doc Document, c category) *float64 {
		cheapest, ok := doc["cheapest"].(map[string]interface{})
		if !ok {
			return nil
		}
		inner, ok := cheapest[section].(map[string]interface{})
		if !ok {
			return nil
		}
		return parsePrice(inner[c.feedKey])
	}
}

// fromRateMatrix is the computed fallback: walk the full rate-code x cabin
// grid under "prices", group cabins by type keyword, and take the minimum
// observed price per group.
func fromRateMatrix(doc Document, c category) *float64 {
	rates, ok := doc["prices"].(map[string]interface{})
	if !ok {
		return nil
	}
	var min *float64
	for _, rateVal := range rates {
		cabins, ok := rateVal.(map[string]interface{})
		if !ok {
			continue
		}
		for _, cabinVal := range cabins {
			cabin, ok := cabinVal.(map[string]interface{})
			if !ok {
				continue
			}
			cabinType, _ := cabin["cabintype"].(string)
			if !matchesCategory(cabinType, c.name) {
				continue
			}
			p := parsePrice(cabin["price"])
			if p == nil {
				continue
			}
			if min == nil || *p < *min {
				min = p
			}
		}
	}
	return min
}

// matchesCategory maps free-text cabin type labels onto the four categories.
func matchesCategory(cabinType, name string) bool {
	ct := strings.ToLower(cabinType)
	switch name {
	case "interior":
		return strings.Contains(ct, "interior") || strings.Contains(ct, "inside")
	case "oceanview":
		return strings.Contains(ct, "ocean") || strings.Contains(ct, "outside")
	case "balcony":
		return strings.Contains(ct, "balcony")
	case "suite":
		return strings.Contains(ct, "suite")
	}
	return false
}

// parsePrice converts a raw JSON value into a price.  Zero and non-numeric
// strings mean "not offered" upstream, so both come back as nil — that is
// feed behaviour to honour, not bad data to repair.
func parsePrice(v interface{}) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if f <= 0 {
		return nil
	}
	return &f
}
