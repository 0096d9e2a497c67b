package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"socialpress/internal/campaign"
)

const campaignColumns = `id, title, status, fetcher_type, fetcher_settings,
	enable_translation, translator_type, translator_settings, target_language,
	schedule_type, schedule_at, recurring_interval, template, filters,
	last_run, last_error, created_at, updated_at`

// CreateCampaign inserts a campaign and returns its ID.
func (s *Store) CreateCampaign(c *campaign.Campaign) (int64, error) {
	fetcherSettings, translatorSettings, filters, err := marshalCampaignFields(c)
	if err != nil {
		return 0, err
	}

	status := c.Status
	if status == "" {
		status = campaign.StatusDraft
	}
	scheduleType := c.Schedule.Type
	if scheduleType == "" {
		scheduleType = campaign.ScheduleManual
	}

	result, err := s.conn.Exec(
		`INSERT INTO campaigns (title, status, fetcher_type, fetcher_settings,
			enable_translation, translator_type, translator_settings, target_language,
			schedule_type, schedule_at, recurring_interval, template, filters)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Title, string(status), c.FetcherType, fetcherSettings,
		c.EnableTranslation, c.TranslatorType, translatorSettings, c.TargetLanguage,
		string(scheduleType), formatTimePtr(c.Schedule.At), string(c.Schedule.Interval),
		c.Template, filters,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting campaign: %w", err)
	}
	return result.LastInsertId()
}

// UpdateCampaign rewrites a campaign's configuration fields. Run state
// (status, last_run, last_error) is owned by UpdateCampaignRunState.
func (s *Store) UpdateCampaign(c *campaign.Campaign) error {
	fetcherSettings, translatorSettings, filters, err := marshalCampaignFields(c)
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(
		`UPDATE campaigns SET title = ?, fetcher_type = ?, fetcher_settings = ?,
			enable_translation = ?, translator_type = ?, translator_settings = ?,
			target_language = ?, schedule_type = ?, schedule_at = ?,
			recurring_interval = ?, template = ?, filters = ?,
			updated_at = datetime('now')
		WHERE id = ?`,
		c.Title, c.FetcherType, fetcherSettings,
		c.EnableTranslation, c.TranslatorType, translatorSettings,
		c.TargetLanguage, string(c.Schedule.Type), formatTimePtr(c.Schedule.At),
		string(c.Schedule.Interval), c.Template, filters, c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating campaign %d: %w", c.ID, err)
	}
	return nil
}

// GetCampaign returns a campaign by ID, or nil if it does not exist.
func (s *Store) GetCampaign(id int64) (*campaign.Campaign, error) {
	row := s.conn.QueryRow(
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id,
	)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListCampaigns returns all campaigns ordered by ID.
func (s *Store) ListCampaigns() ([]campaign.Campaign, error) {
	return s.queryCampaigns(`SELECT ` + campaignColumns + ` FROM campaigns ORDER BY id`)
}

// ListActiveCampaigns returns all campaigns with status active.
func (s *Store) ListActiveCampaigns() ([]campaign.Campaign, error) {
	return s.queryCampaigns(
		`SELECT `+campaignColumns+` FROM campaigns WHERE status = ? ORDER BY id`,
		string(campaign.StatusActive),
	)
}

// UpdateCampaignRunState updates the pipeline-owned fields. Nil
// arguments leave the corresponding column untouched; a pointer to the
// empty string clears last_error.
func (s *Store) UpdateCampaignRunState(id int64, lastRun *time.Time, lastError *string, status *campaign.Status) error {
	if lastRun != nil {
		if _, err := s.conn.Exec(
			"UPDATE campaigns SET last_run = ? WHERE id = ?",
			lastRun.UTC().Format(time.RFC3339), id,
		); err != nil {
			return fmt.Errorf("updating last_run for campaign %d: %w", id, err)
		}
	}
	if lastError != nil {
		if _, err := s.conn.Exec(
			"UPDATE campaigns SET last_error = NULLIF(?, '') WHERE id = ?",
			*lastError, id,
		); err != nil {
			return fmt.Errorf("updating last_error for campaign %d: %w", id, err)
		}
	}
	if status != nil {
		if _, err := s.conn.Exec(
			"UPDATE campaigns SET status = ? WHERE id = ?",
			string(*status), id,
		); err != nil {
			return fmt.Errorf("updating status for campaign %d: %w", id, err)
		}
	}
	return nil
}

func (s *Store) queryCampaigns(query string, args ...any) ([]campaign.Campaign, error) {
	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*campaign.Campaign, error) {
	var (
		c                  campaign.Campaign
		status             string
		fetcherSettings    string
		translatorSettings string
		scheduleType       string
		scheduleAt         sql.NullString
		interval           string
		filters            string
		lastRun            sql.NullString
		lastError          sql.NullString
		createdAt          sql.NullString
		updatedAt          sql.NullString
	)

	err := row.Scan(
		&c.ID, &c.Title, &status, &c.FetcherType, &fetcherSettings,
		&c.EnableTranslation, &c.TranslatorType, &translatorSettings, &c.TargetLanguage,
		&scheduleType, &scheduleAt, &interval, &c.Template, &filters,
		&lastRun, &lastError, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = campaign.Status(status)
	c.Schedule = campaign.Schedule{
		Type:     campaign.ScheduleType(scheduleType),
		At:       parseTimePtr(scheduleAt),
		Interval: campaign.Interval(interval),
	}
	if err := json.Unmarshal([]byte(fetcherSettings), &c.FetcherSettings); err != nil {
		return nil, fmt.Errorf("decoding fetcher settings for campaign %d: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(translatorSettings), &c.TranslatorSettings); err != nil {
		return nil, fmt.Errorf("decoding translator settings for campaign %d: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(filters), &c.Filters); err != nil {
		return nil, fmt.Errorf("decoding filters for campaign %d: %w", c.ID, err)
	}
	c.LastRun = parseTimePtr(lastRun)
	if lastError.Valid {
		c.LastError = &lastError.String
	}
	c.CreatedAt = parseTimePtr(createdAt)
	c.UpdatedAt = parseTimePtr(updatedAt)

	return &c, nil
}

func marshalCampaignFields(c *campaign.Campaign) (fetcherSettings, translatorSettings, filters string, err error) {
	fs, err := marshalMap(c.FetcherSettings)
	if err != nil {
		return "", "", "", err
	}
	ts, err := marshalMap(c.TranslatorSettings)
	if err != nil {
		return "", "", "", err
	}
	fl := c.Filters
	if fl == nil {
		fl = []campaign.Filter{}
	}
	flJSON, err := json.Marshal(fl)
	if err != nil {
		return "", "", "", err
	}
	return fs, ts, string(flJSON), nil
}

func marshalMap(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// sqlite's datetime('now') emits "2006-01-02 15:04:05"; values we write
// ourselves are RFC3339.
var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05"}

func parseTimePtr(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v.String); err == nil {
			return &t
		}
	}
	return nil
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
