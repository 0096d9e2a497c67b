package store

import (
	"fmt"
	"time"
)

// LogEntry is one row of the append-only log table.
type LogEntry struct {
	ID         int64  `json:"id"`
	Timestamp  string `json:"timestamp"`
	Level      string `json:"level"`
	Message    string `json:"message"`
	CampaignID *int64 `json:"campaign_id,omitempty"`
	Context    string `json:"context,omitempty"` // JSON object, empty when no context was attached
}

// LogQuery filters and pages log listings.
type LogQuery struct {
	Level      string
	CampaignID int64
	Limit      int
}

// InsertLog appends a log entry.
func (s *Store) InsertLog(level, message string, campaignID *int64, context string) error {
	_, err := s.conn.Exec(
		`INSERT INTO logs (timestamp, level, message, campaign_id, context)
		VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), level, message, campaignID, context,
	)
	if err != nil {
		return fmt.Errorf("inserting log entry: %w", err)
	}
	return nil
}

// GetLogs returns log entries matching the query, newest first.
func (s *Store) GetLogs(q LogQuery) ([]LogEntry, error) {
	query := "SELECT id, timestamp, level, message, campaign_id, context FROM logs"
	var (
		where []string
		args  []any
	)
	if q.Level != "" {
		where = append(where, "level = ?")
		args = append(args, q.Level)
	}
	if q.CampaignID != 0 {
		where = append(where, "campaign_id = ?")
		args = append(args, q.CampaignID)
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += " ORDER BY timestamp DESC, id DESC"
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Level, &e.Message, &e.CampaignID, &e.Context); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearLogs deletes log entries, optionally restricted to one level.
// Returns the number of entries deleted.
func (s *Store) ClearLogs(level string) (int64, error) {
	var (
		result interface{ RowsAffected() (int64, error) }
		err    error
	)
	if level != "" {
		result, err = s.conn.Exec("DELETE FROM logs WHERE level = ?", level)
	} else {
		result, err = s.conn.Exec("DELETE FROM logs")
	}
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CleanupLogs deletes entries older than the retention window.
func (s *Store) CleanupLogs(retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)
	result, err := s.conn.Exec("DELETE FROM logs WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
