package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// Artifact is a published output created from one fetched item.
type Artifact struct {
	ID            int64             `json:"id"`
	CampaignID    int64             `json:"campaign_id"`
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	URL           string            `json:"url"`
	Author        string            `json:"author,omitempty"`
	PublishedDate string            `json:"published_date,omitempty"`
	Image         string            `json:"image,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
	CreatedAt     *string           `json:"created_at,omitempty"`
}

// ArtifactExists reports whether an artifact with the given
// (campaign, url) pair has already been published.
func (s *Store) ArtifactExists(campaignID int64, url string) (bool, error) {
	var count int
	err := s.conn.QueryRow(
		"SELECT COUNT(*) FROM artifacts WHERE campaign_id = ? AND url = ?",
		campaignID, url,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateArtifact inserts an artifact. Returns the ID on success, 0 if an
// artifact with the same (campaign, url) pair already exists. The UNIQUE
// constraint makes the dedup check-then-insert atomic under concurrent runs.
func (s *Store) CreateArtifact(a *Artifact) (int64, error) {
	meta, err := marshalMap(a.Meta)
	if err != nil {
		return 0, fmt.Errorf("encoding artifact metadata: %w", err)
	}

	result, err := s.conn.Exec(
		`INSERT INTO artifacts (campaign_id, title, content, url, author, published_date, image, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.CampaignID, a.Title, a.Content, a.URL, a.Author, a.PublishedDate, a.Image, meta,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, nil
		}
		return 0, err
	}
	return result.LastInsertId()
}

// GetArtifact returns an artifact by ID, or nil if it does not exist.
func (s *Store) GetArtifact(id int64) (*Artifact, error) {
	row := s.conn.QueryRow(
		`SELECT id, campaign_id, title, content, url, author, published_date, image, metadata, created_at
		FROM artifacts WHERE id = ?`, id,
	)
	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// ListArtifacts returns artifacts for a campaign, newest first. A zero
// campaignID returns artifacts for all campaigns.
func (s *Store) ListArtifacts(campaignID int64) ([]Artifact, error) {
	query := `SELECT id, campaign_id, title, content, url, author, published_date, image, metadata, created_at
		FROM artifacts`
	var args []any
	if campaignID != 0 {
		query += " WHERE campaign_id = ?"
		args = append(args, campaignID)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, rows.Err()
}

func scanArtifact(row rowScanner) (*Artifact, error) {
	var (
		a    Artifact
		meta string
	)
	err := row.Scan(&a.ID, &a.CampaignID, &a.Title, &a.Content, &a.URL,
		&a.Author, &a.PublishedDate, &a.Image, &meta, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &a.Meta); err != nil {
		return nil, fmt.Errorf("decoding metadata for artifact %d: %w", a.ID, err)
	}
	return &a, nil
}
