package service

import (
	"encoding/json"
	"testing"
)

func TestExtractListings(t *testing.T) {
	t.Run("Full listing from prose-embedded array", func(t *testing.T) {
		text := `Voici une annonce qui correspond:
{"properties": [{"mls": "1234567", "url": "https://www.centris.ca/fr/x/1234567", "address": "123 Rue Principale, Montréal", "price_cad": 450000, "beds": 2, "baths": 1.5, "type": "condo", "note": "proche du métro"}]}
Bonne recherche!`

		listings := ExtractListings(text, 10)
		if len(listings) != 1 {
			t.Fatalf("expected 1 listing, got %d", len(listings))
		}
		l := listings[0]
		if l.MLS == nil || *l.MLS != "1234567" {
			t.Errorf("MLS = %v, want 1234567", l.MLS)
		}
		if l.PriceCAD == nil || *l.PriceCAD != 450000 {
			t.Errorf("PriceCAD = %v, want 450000", l.PriceCAD)
		}
		if l.Baths == nil || *l.Baths != 1.5 {
			t.Errorf("Baths = %v, want 1.5", l.Baths)
		}
		if l.Address == nil || *l.Address != "123 Rue Principale, Montréal" {
			t.Errorf("Address = %v", l.Address)
		}
	})

	t.Run("No properties key yields empty slice", func(t *testing.T) {
		listings := ExtractListings("Sorry, I could not find any listings matching your criteria.", 10)
		if listings == nil {
			t.Fatal("expected empty slice, not nil")
		}
		if len(listings) != 0 {
			t.Errorf("expected 0 listings, got %d", len(listings))
		}
	})

	t.Run("Unparseable array yields empty slice", func(t *testing.T) {
		listings := ExtractListings(`{"properties": [{"mls": "123`, 10)
		if len(listings) != 0 {
			t.Errorf("expected 0 listings, got %d", len(listings))
		}
	})

	t.Run("Wrong-typed field dropped, others kept", func(t *testing.T) {
		text := `{"properties": [{"mls": "7654321", "price_cad": "cheap", "beds": 3}]}`

		listings := ExtractListings(text, 10)
		if len(listings) != 1 {
			t.Fatalf("expected 1 listing, got %d", len(listings))
		}
		l := listings[0]
		if l.MLS == nil || *l.MLS != "7654321" {
			t.Errorf("MLS = %v, want 7654321", l.MLS)
		}
		if l.PriceCAD != nil {
			t.Errorf("PriceCAD should be dropped, got %v", *l.PriceCAD)
		}
		if l.Beds == nil || *l.Beds != 3 {
			t.Errorf("Beds = %v, want 3", l.Beds)
		}
	})

	t.Run("Failed full decode leaves no partial values behind", func(t *testing.T) {
		// The full-shape attempt touches price_cad before erroring on
		// beds; neither partial value may survive into the projection
		text := `{"properties": [{"price_cad": 450000, "beds": "three", "note": "ok"}]}`

		listings := ExtractListings(text, 10)
		if len(listings) != 1 {
			t.Fatalf("expected 1 listing, got %d", len(listings))
		}
		l := listings[0]
		if l.PriceCAD == nil || *l.PriceCAD != 450000 {
			t.Errorf("PriceCAD = %v, want 450000", l.PriceCAD)
		}
		if l.Beds != nil {
			t.Errorf("Beds should be dropped, got %v", *l.Beds)
		}
		if l.Note == nil || *l.Note != "ok" {
			t.Errorf("Note = %v, want ok", l.Note)
		}
	})

	t.Run("Empty object becomes all-null listing", func(t *testing.T) {
		listings := ExtractListings(`{"properties": [{}]}`, 10)
		if len(listings) != 1 {
			t.Fatalf("expected 1 listing, got %d", len(listings))
		}
		l := listings[0]
		if l.MLS != nil || l.URL != nil || l.Address != nil || l.PriceCAD != nil {
			t.Error("expected all-null listing from empty object")
		}
	})

	t.Run("Non-object elements dropped", func(t *testing.T) {
		text := `{"properties": ["just a string", 42, {"mls": "1111111"}]}`

		listings := ExtractListings(text, 10)
		if len(listings) != 1 {
			t.Fatalf("expected 1 listing, got %d", len(listings))
		}
		if listings[0].MLS == nil || *listings[0].MLS != "1111111" {
			t.Errorf("MLS = %v, want 1111111", listings[0].MLS)
		}
	})

	t.Run("Duplicates collapsed by MLS", func(t *testing.T) {
		text := `{"properties": [
			{"mls": "1234567", "note": "first"},
			{"mls": "MLS 1234567", "note": "same listing, decorated MLS"},
			{"mls": "7654321", "note": "different"}
		]}`

		listings := ExtractListings(text, 10)
		if len(listings) != 2 {
			t.Fatalf("expected 2 listings after dedup, got %d", len(listings))
		}
		if listings[0].Note == nil || *listings[0].Note != "first" {
			t.Error("first occurrence should win")
		}
	})

	t.Run("Duplicates collapsed by URL when MLS missing", func(t *testing.T) {
		text := `{"properties": [
			{"url": "https://www.centris.ca/fr/x/99?utm=a"},
			{"url": "http://centris.ca/fr/x/99/"},
			{"url": "https://www.centris.ca/fr/x/100"}
		]}`

		listings := ExtractListings(text, 10)
		if len(listings) != 2 {
			t.Fatalf("expected 2 listings after URL dedup, got %d", len(listings))
		}
	})

	t.Run("Keyless listings never collapse into each other", func(t *testing.T) {
		listings := ExtractListings(`{"properties": [{}, {}, {"note": "x"}]}`, 10)
		if len(listings) != 3 {
			t.Errorf("expected 3 keyless listings, got %d", len(listings))
		}
	})

	t.Run("Limit caps the output", func(t *testing.T) {
		text := `{"properties": [
			{"mls": "1000001"}, {"mls": "1000002"}, {"mls": "1000003"},
			{"mls": "1000004"}, {"mls": "1000005"}
		]}`

		listings := ExtractListings(text, 2)
		if len(listings) != 2 {
			t.Fatalf("expected 2 listings, got %d", len(listings))
		}
		if *listings[0].MLS != "1000001" || *listings[1].MLS != "1000002" {
			t.Error("limit should keep the leading listings")
		}
	})

	t.Run("Extraction is idempotent", func(t *testing.T) {
		text := `{"properties": [{"mls": "1234567", "price_cad": 450000}, {"mls": "7654321"}]}`

		first := ExtractListings(text, 10)
		data, err := json.Marshal(map[string]any{"properties": first})
		if err != nil {
			t.Fatal(err)
		}
		second := ExtractListings(string(data), 10)

		if len(second) != len(first) {
			t.Fatalf("second pass returned %d listings, want %d", len(second), len(first))
		}
		for i := range first {
			a, _ := json.Marshal(first[i])
			b, _ := json.Marshal(second[i])
			if string(a) != string(b) {
				t.Errorf("listing %d changed across passes: %s vs %s", i, a, b)
			}
		}
	})

	t.Run("Markdown-fenced payload", func(t *testing.T) {
		text := "Here are the results:\n```json\n{\"properties\": [{\"mls\": \"2222222\"}]}\n```"

		listings := ExtractListings(text, 10)
		if len(listings) != 1 {
			t.Fatalf("expected 1 listing from fenced payload, got %d", len(listings))
		}
	})
}
