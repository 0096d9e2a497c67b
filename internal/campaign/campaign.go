// Package campaign holds the core domain types shared by the store,
// providers, engine, and scheduler.
package campaign

import (
	"time"
)

// Status of a campaign.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusDraft     Status = "draft"
)

// StatusLabel returns the display label for a status.
func StatusLabel(s Status) string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusPaused:
		return "Paused"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	case StatusDraft:
		return "Draft"
	}
	return string(s)
}

// ScheduleType selects how a campaign is triggered.
type ScheduleType string

const (
	ScheduleManual    ScheduleType = "manual"
	ScheduleScheduled ScheduleType = "scheduled"
	ScheduleRecurring ScheduleType = "recurring"
)

// Interval is the recurrence period of a recurring campaign.
type Interval string

const (
	IntervalHourly Interval = "hourly"
	IntervalDaily  Interval = "daily"
	IntervalWeekly Interval = "weekly"
)

// Schedule describes when a campaign should run.
type Schedule struct {
	Type     ScheduleType `json:"type"`
	At       *time.Time   `json:"at,omitempty"`       // scheduled only
	Interval Interval     `json:"interval,omitempty"` // recurring only
}

// IntervalDuration maps a recurrence interval to its period.
// Unknown values fall back to daily.
func IntervalDuration(i Interval) time.Duration {
	switch i {
	case IntervalHourly:
		return time.Hour
	case IntervalDaily:
		return 24 * time.Hour
	case IntervalWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Campaign is a configured content-ingestion-and-publish job.
type Campaign struct {
	ID                 int64             `json:"id"`
	Title              string            `json:"title"`
	Status             Status            `json:"status"`
	FetcherType        string            `json:"fetcher_type"`
	FetcherSettings    map[string]string `json:"fetcher_settings,omitempty"`
	EnableTranslation  bool              `json:"enable_translation"`
	TranslatorType     string            `json:"translator_type,omitempty"`
	TranslatorSettings map[string]string `json:"translator_settings,omitempty"`
	TargetLanguage     string            `json:"target_language,omitempty"`
	Schedule           Schedule          `json:"schedule"`
	Template           string            `json:"template,omitempty"`
	Filters            []Filter          `json:"filters,omitempty"`
	LastRun            *time.Time        `json:"last_run,omitempty"`
	LastError          *string           `json:"last_error,omitempty"`
	CreatedAt          *time.Time        `json:"created_at,omitempty"`
	UpdatedAt          *time.Time        `json:"updated_at,omitempty"`
}

// IsDue reports whether the campaign's schedule condition holds at now.
// Manual campaigns are never due; they only run on explicit invocation.
func (c *Campaign) IsDue(now time.Time) bool {
	switch c.Schedule.Type {
	case ScheduleScheduled:
		return c.Schedule.At != nil && !now.Before(*c.Schedule.At)
	case ScheduleRecurring:
		if c.LastRun == nil {
			return true
		}
		return !now.Before(c.LastRun.Add(IntervalDuration(c.Schedule.Interval)))
	}
	return false
}

// Item is the unit of content produced by a fetcher. Date is kept as
// the provider supplied it; consumers parse it leniently when needed.
type Item struct {
	Title   string
	Content string
	Author  string
	Date    string
	URL     string
	Image   string
	Meta    map[string]string
}
