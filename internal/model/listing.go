package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Listing represents one property listing extracted from model output.
// Every field is optional: the model is untrusted and frequently omits
// fields it could not find on a page.
type Listing struct {
	MLS      *string  `json:"mls"`
	URL      *string  `json:"url"`
	Address  *string  `json:"address"`
	PriceCAD *int     `json:"price_cad"`
	Beds     *int     `json:"beds"`
	Baths    *float64 `json:"baths"`
	Type     *string  `json:"type"`
	Note     *string  `json:"note"`
}

// MatchResult is the terminal output of one match request. MatchID is
// set only when the archive is enabled; feedback references it.
type MatchResult struct {
	Reply      string    `json:"reply"`
	Properties []Listing `json:"properties"`
	MatchID    string    `json:"match_id,omitempty"`
}

// MatchLog is one archived match request (optional Postgres archive)
type MatchLog struct {
	ID           int64     `json:"id" db:"id"`
	MatchID      string    `json:"match_id" db:"match_id"`
	Location     string    `json:"location" db:"location"`
	Criteria     JSONMap   `json:"criteria,omitempty" db:"criteria"`
	Reply        string    `json:"reply" db:"reply"`
	ListingCount int       `json:"listing_count" db:"listing_count"`
	Rounds       int       `json:"rounds" db:"rounds"`
	TookMs       int64     `json:"took_ms" db:"took_ms"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ArchivedListing is a listing stored in the archive together with its
// summary embedding. The embedding column is pgvector-backed.
type ArchivedListing struct {
	ID        int64           `json:"id" db:"id"`
	MatchID   string          `json:"match_id" db:"match_id"`
	MLS       *string         `json:"mls,omitempty" db:"mls"`
	URL       *string         `json:"url,omitempty" db:"url"`
	Address   *string         `json:"address,omitempty" db:"address"`
	PriceCAD  *int            `json:"price_cad,omitempty" db:"price_cad"`
	Beds      *int            `json:"beds,omitempty" db:"beds"`
	Baths     *float64        `json:"baths,omitempty" db:"baths"`
	Type      *string         `json:"type,omitempty" db:"unit_type"`
	Note      *string         `json:"note,omitempty" db:"note"`
	Embedding pgvector.Vector `json:"-" db:"embedding"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// FeedbackRequest records a user action on a returned listing
type FeedbackRequest struct {
	MatchID string `json:"match_id" binding:"required"`
	MLS     string `json:"mls,omitempty"`
	URL     string `json:"url,omitempty"`
	Action  string `json:"action" binding:"required"` // click, contact, view_details
}

// FeedbackResponse represents feedback response
type FeedbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
