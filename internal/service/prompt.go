package service

import (
	"fmt"
	"strings"

	"core/internal/model"
)

// mlsHint teaches the model what MLS numbers look like on the sites it
// will encounter
const mlsHint = "For MLS extraction:\n" +
	"- Centris QC: often 7 digits, e.g., 1234567 (use \\b\\d{7}\\b).\n" +
	"- REALTOR.ca: can be alphanumeric/hyphen, use \\b[A-Z0-9-]{6,12}\\b.\n" +
	"If MLS not on page, set mls:null."

// BuildSystemPrompt constructs the system turn for the matching loop
func BuildSystemPrompt() string {
	return "You are ListingMatcher, a real-estate assistant for Québec.\n" +
		"- Return only CURRENT listings in Québec; if uncertain, say so.\n" +
		"- Output 5–12 results, deduplicate by MLS.\n" +
		"- Fields: mls, url, address, price_cad, beds, baths, type, note (one-line).\n" +
		"- " + mlsHint + "\n" +
		"- ALWAYS return a machine-readable JSON array named 'properties' at the end."
}

// BuildUserPrompt constructs the user turn from the normalized criteria
func BuildUserPrompt(c *model.Criteria) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Location: %s\n", c.Location)
	fmt.Fprintf(&b, "Budget: %s\n", orNA(c.Budget))
	fmt.Fprintf(&b, "Beds: %s\n", orNAInt(c.Beds))
	fmt.Fprintf(&b, "Baths: %s\n", orNAFloat(c.Baths))
	fmt.Fprintf(&b, "Keywords: %s\n", orNA(c.Keywords))
	fmt.Fprintf(&b, "Limit: %d\n", c.Limit)
	b.WriteString(languageLine(c.Language))
	b.WriteString("\n")
	b.WriteString("If tools are available, you may search with site filters like 'site:centris.ca' or 'site:realtor.ca', " +
		"then open promising URLs and extract MLS/address/price from page content. " +
		"Return a concise human summary PLUS a JSON array named 'properties'.")
	return b.String()
}

// languageLine selects the bilingual answer instruction
func languageLine(lang string) string {
	if lang == "fr" {
		return "Réponds en français d’abord, puis fournis une courte version en anglais."
	}
	return "Answer in English first, then provide a short French version."
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func orNAInt(v *int) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *v)
}

func orNAFloat(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%g", *v)
}
