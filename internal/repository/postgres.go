package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"core/internal/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// MatchArchive stores completed matches and their listings. The archive
// is optional; the matching loop itself keeps no state across requests.
type MatchArchive struct {
	db *sqlx.DB
}

// NewMatchArchive creates a new PostgreSQL-backed archive
func NewMatchArchive(dsn string, maxConn, maxIdleConn int) (*MatchArchive, error) {
	// Disable prepared statement caching to avoid "unnamed prepared statement does not exist" errors
	if !strings.Contains(dsn, "?") {
		dsn += "?prefer_simple_protocol=true"
	} else {
		dsn += "&prefer_simple_protocol=true"
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute) // Shorter lifetime to avoid stale connections
	db.SetConnMaxIdleTime(2 * time.Minute) // Close idle connections sooner

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &MatchArchive{db: db}, nil
}

// Close closes the database connection
func (a *MatchArchive) Close() error {
	return a.db.Close()
}

// EnsureSchema creates the archive tables when they do not exist yet.
// embeddingDims must match the configured embedding model output size.
func (a *MatchArchive) EnsureSchema(ctx context.Context, embeddingDims int) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS match_logs (
			id BIGSERIAL PRIMARY KEY,
			match_id TEXT UNIQUE NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			criteria JSONB,
			reply TEXT NOT NULL DEFAULT '',
			listing_count INT NOT NULL DEFAULT 0,
			rounds INT NOT NULL DEFAULT 0,
			took_ms BIGINT NOT NULL DEFAULT 0,
			clicked_mls TEXT,
			clicked_url TEXT,
			action TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS archived_listings (
			id BIGSERIAL PRIMARY KEY,
			match_id TEXT NOT NULL REFERENCES match_logs(match_id) ON DELETE CASCADE,
			mls TEXT,
			url TEXT,
			address TEXT,
			price_cad INT,
			beds INT,
			baths DOUBLE PRECISION,
			unit_type TEXT,
			note TEXT,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, embeddingDims),
		`CREATE INDEX IF NOT EXISTS idx_archived_listings_match_id ON archived_listings(match_id)`,
		`CREATE INDEX IF NOT EXISTS idx_archived_listings_mls ON archived_listings(mls)`,
	}

	for _, stmt := range statements {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// LogMatch inserts one completed match
func (a *MatchArchive) LogMatch(ctx context.Context, entry *model.MatchLog) error {
	query := `
		INSERT INTO match_logs (match_id, location, criteria, reply, listing_count, rounds, took_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := a.db.ExecContext(ctx, query,
		entry.MatchID, entry.Location, entry.Criteria, entry.Reply,
		entry.ListingCount, entry.Rounds, entry.TookMs)
	if err != nil {
		return fmt.Errorf("failed to log match: %w", err)
	}
	return nil
}

// ArchiveListings stores the listings of one match. embeddings may be
// nil or shorter than listings; rows then archive without a vector.
// Returns the success count and per-row errors.
func (a *MatchArchive) ArchiveListings(ctx context.Context, matchID string, listings []model.Listing, embeddings [][]float32) (int, []string) {
	success := 0
	var errors []string

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		errors = append(errors, fmt.Sprintf("failed to start transaction: %v", err))
		return success, errors
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO archived_listings (match_id, mls, url, address, price_cad, beds, baths, unit_type, note, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		errors = append(errors, fmt.Sprintf("failed to prepare statement: %v", err))
		return success, errors
	}
	defer stmt.Close()

	for i, listing := range listings {
		var vec interface{}
		if i < len(embeddings) && len(embeddings[i]) > 0 {
			vec = pgvector.NewVector(embeddings[i])
		}
		_, err := stmt.ExecContext(ctx,
			matchID, listing.MLS, listing.URL, listing.Address, listing.PriceCAD,
			listing.Beds, listing.Baths, listing.Type, listing.Note, vec)
		if err != nil {
			errors = append(errors, fmt.Sprintf("listing %d: %v", i, err))
			continue
		}
		success++
	}

	if err := tx.Commit(); err != nil {
		errors = append(errors, fmt.Sprintf("failed to commit transaction: %v", err))
		return 0, errors
	}

	return success, errors
}

// RecentMatches returns the latest archived matches
func (a *MatchArchive) RecentMatches(ctx context.Context, limit int) ([]model.MatchLog, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, match_id, location, criteria, reply, listing_count, rounds, took_ms, created_at
		FROM match_logs
		ORDER BY created_at DESC
		LIMIT $1
	`
	var logs []model.MatchLog
	if err := a.db.SelectContext(ctx, &logs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch recent matches: %w", err)
	}
	return logs, nil
}

// MatchListings returns the archived listings of one match
func (a *MatchArchive) MatchListings(ctx context.Context, matchID string) ([]model.ArchivedListing, error) {
	query := `
		SELECT id, match_id, mls, url, address, price_cad, beds, baths, unit_type, note, created_at
		FROM archived_listings
		WHERE match_id = $1
		ORDER BY id
	`
	var listings []model.ArchivedListing
	if err := a.db.SelectContext(ctx, &listings, query, matchID); err != nil {
		return nil, fmt.Errorf("failed to fetch match listings: %w", err)
	}
	return listings, nil
}

// LogFeedback records a user action on a returned listing
func (a *MatchArchive) LogFeedback(ctx context.Context, matchID, mls, url, action string) error {
	query := `
		UPDATE match_logs
		SET clicked_mls = NULLIF($2, ''), clicked_url = NULLIF($3, ''), action = $4
		WHERE match_id = $1
	`
	res, err := a.db.ExecContext(ctx, query, matchID, mls, url, action)
	if err != nil {
		return fmt.Errorf("failed to log feedback: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("unknown match_id: %s", matchID)
	}
	return nil
}
