package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// MatchRequest is the inbound search request. Field shapes are tolerant:
// callers built on no-code frontends send budget as either a number or a
// string, and language in several spellings.
type MatchRequest struct {
	Location string        `json:"location"`
	Budget   *FlexibleText `json:"budget,omitempty"`
	PriceMin *float64      `json:"price_min,omitempty"`
	PriceMax *float64      `json:"price_max,omitempty"`
	Beds     *int          `json:"beds,omitempty"`
	Baths    *float64      `json:"baths,omitempty"`
	Keywords string        `json:"keywords,omitempty"`
	Limit    int           `json:"limit,omitempty"`
	Language string        `json:"language,omitempty"`
	AllowWeb *bool         `json:"allow_web,omitempty"`
}

// FlexibleText accepts a JSON string or number and keeps it as text
type FlexibleText string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexibleText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleText(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleText(strconv.FormatFloat(n, 'f', -1, 64))
		return nil
	}
	// Tolerate anything else by dropping it
	*f = ""
	return nil
}

// Criteria is the normalized, flat form of a MatchRequest consumed by the
// matcher service.
type Criteria struct {
	Location string
	Budget   string // Display form; "" when neither budget nor price range given
	PriceMin *float64
	PriceMax *float64
	Beds     *int
	Baths    *float64
	Keywords string
	Limit    int
	Language string // "fr" or "en"
	AllowWeb bool
}

// Normalize flattens the request into Criteria, clamping the limit into
// [1, maxLimit] and collapsing the language preference to "fr"/"en".
func (r *MatchRequest) Normalize(defaultLimit, maxLimit int) *Criteria {
	c := &Criteria{
		Location: strings.TrimSpace(r.Location),
		PriceMin: r.PriceMin,
		PriceMax: r.PriceMax,
		Beds:     r.Beds,
		Baths:    r.Baths,
		Keywords: strings.TrimSpace(r.Keywords),
		Limit:    r.Limit,
	}

	if r.Budget != nil && *r.Budget != "" {
		c.Budget = string(*r.Budget)
	} else if r.PriceMin != nil || r.PriceMax != nil {
		c.Budget = formatPriceRange(r.PriceMin, r.PriceMax)
	}

	if c.Limit <= 0 {
		c.Limit = defaultLimit
	}
	if c.Limit > maxLimit {
		c.Limit = maxLimit
	}

	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(r.Language)), "fr") {
		c.Language = "fr"
	} else {
		c.Language = "en"
	}

	// Web tools are on unless explicitly disabled
	c.AllowWeb = r.AllowWeb == nil || *r.AllowWeb

	return c
}

func formatPriceRange(min, max *float64) string {
	switch {
	case min != nil && max != nil:
		return formatCAD(*min) + "-" + formatCAD(*max) + " CAD"
	case max != nil:
		return "up to " + formatCAD(*max) + " CAD"
	case min != nil:
		return "from " + formatCAD(*min) + " CAD"
	}
	return ""
}

func formatCAD(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
