package service

import (
	"encoding/json"

	"core/internal/model"
	"core/internal/utils"
)

// recognized listing field names; anything else in a model-produced
// element is discarded during the per-field fallback
var listingFields = []string{"mls", "url", "address", "price_cad", "beds", "baths", "type", "note"}

// ExtractListings recovers the 'properties' JSON array the model was
// instructed to embed in its free-text answer and maps it into typed
// listings. Absence or a parse failure yields an empty slice, never an
// error. Duplicates are collapsed by MLS (URL as fallback) and the
// output is capped at limit.
func ExtractListings(text string, limit int) []model.Listing {
	out := []model.Listing{}

	arr := utils.FindKeyedArray(text, "properties")
	if arr == "" {
		return out
	}

	var elems []json.RawMessage
	if err := utils.ParseAIJSON(arr, &elems); err != nil {
		return out
	}

	seen := make(map[string]bool)
	for _, raw := range elems {
		listing, ok := decodeListing(raw)
		if !ok {
			continue
		}

		key := utils.ListingKey(strDeref(listing.MLS), strDeref(listing.URL))
		if key != "" {
			if seen[key] {
				continue
			}
			seen[key] = true
		}

		out = append(out, listing)
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out
}

// decodeListing attempts full-shape construction first, then falls back
// to projecting only the recognized fields, dropping ones that fail
// individually. Elements that are not JSON objects fail both attempts.
func decodeListing(raw json.RawMessage) (model.Listing, bool) {
	var listing model.Listing
	if err := json.Unmarshal(raw, &listing); err == nil {
		return listing, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return model.Listing{}, false
	}

	// The failed full-shape attempt may have partially populated fields
	// before erroring; project into a clean value
	listing = model.Listing{}

	for _, field := range listingFields {
		val, ok := obj[field]
		if !ok {
			continue
		}
		// Per-field: a value of the wrong type is dropped, not fatal
		switch field {
		case "mls":
			_ = json.Unmarshal(val, &listing.MLS)
		case "url":
			_ = json.Unmarshal(val, &listing.URL)
		case "address":
			_ = json.Unmarshal(val, &listing.Address)
		case "price_cad":
			_ = json.Unmarshal(val, &listing.PriceCAD)
		case "beds":
			_ = json.Unmarshal(val, &listing.Beds)
		case "baths":
			_ = json.Unmarshal(val, &listing.Baths)
		case "type":
			_ = json.Unmarshal(val, &listing.Type)
		case "note":
			_ = json.Unmarshal(val, &listing.Note)
		}
	}

	return listing, true
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
