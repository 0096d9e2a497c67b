package store

import (
	"path/filepath"
	"testing"
	"time"

	"socialpress/internal/campaign"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testCampaign() *campaign.Campaign {
	return &campaign.Campaign{
		Title:           "Test Campaign",
		Status:          campaign.StatusActive,
		FetcherType:     "rss",
		FetcherSettings: map[string]string{"feed_url": "https://example.com/feed"},
		Schedule:        campaign.Schedule{Type: campaign.ScheduleRecurring, Interval: campaign.IntervalDaily},
		Template:        "{title}\n\n{content}",
	}
}

func TestCreateAndGetCampaign(t *testing.T) {
	st := openTestStore(t)

	id, err := st.CreateCampaign(testCampaign())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero campaign ID")
	}

	c, err := st.GetCampaign(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil {
		t.Fatal("expected campaign, got nil")
	}
	if c.Title != "Test Campaign" {
		t.Errorf("expected title 'Test Campaign', got %q", c.Title)
	}
	if c.FetcherSettings["feed_url"] != "https://example.com/feed" {
		t.Errorf("fetcher settings not round-tripped: %v", c.FetcherSettings)
	}
	if c.Schedule.Interval != campaign.IntervalDaily {
		t.Errorf("expected daily interval, got %q", c.Schedule.Interval)
	}
}

func TestGetMissingCampaign(t *testing.T) {
	st := openTestStore(t)
	c, err := st.GetCampaign(999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != nil {
		t.Errorf("expected nil for missing campaign, got %+v", c)
	}
}

func TestUpdateCampaign(t *testing.T) {
	st := openTestStore(t)
	id, _ := st.CreateCampaign(testCampaign())

	c, _ := st.GetCampaign(id)
	c.Title = "Renamed"
	c.Status = campaign.StatusPaused
	c.Filters = []campaign.Filter{{Type: campaign.FilterKeyword, Value: "golang"}}
	if err := st.UpdateCampaign(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := st.GetCampaign(id)
	if got.Title != "Renamed" {
		t.Errorf("expected 'Renamed', got %q", got.Title)
	}
	if got.Status != campaign.StatusPaused {
		t.Errorf("expected paused, got %q", got.Status)
	}
	if len(got.Filters) != 1 || got.Filters[0].Value != "golang" {
		t.Errorf("filters not round-tripped: %+v", got.Filters)
	}
}

func TestListActiveCampaigns(t *testing.T) {
	st := openTestStore(t)
	st.CreateCampaign(testCampaign())

	paused := testCampaign()
	paused.Status = campaign.StatusPaused
	st.CreateCampaign(paused)

	active, err := st.ListActiveCampaigns()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("expected 1 active campaign, got %d", len(active))
	}

	all, err := st.ListCampaigns()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 campaigns, got %d", len(all))
	}
}

func TestUpdateCampaignRunState(t *testing.T) {
	st := openTestStore(t)
	id, _ := st.CreateCampaign(testCampaign())

	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	msg := "fetch failed"
	if err := st.UpdateCampaignRunState(id, &now, &msg, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, _ := st.GetCampaign(id)
	if c.LastRun == nil || !c.LastRun.Equal(now) {
		t.Errorf("expected last run %v, got %v", now, c.LastRun)
	}
	if c.LastError == nil || *c.LastError != "fetch failed" {
		t.Errorf("expected last error 'fetch failed', got %v", c.LastError)
	}

	// nil fields leave existing values untouched
	completed := campaign.StatusCompleted
	if err := st.UpdateCampaignRunState(id, nil, nil, &completed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, _ = st.GetCampaign(id)
	if c.Status != campaign.StatusCompleted {
		t.Errorf("expected completed, got %q", c.Status)
	}
	if c.LastRun == nil || !c.LastRun.Equal(now) {
		t.Errorf("last run should be untouched, got %v", c.LastRun)
	}

	// an empty-string pointer clears the error
	empty := ""
	if err := st.UpdateCampaignRunState(id, nil, &empty, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, _ = st.GetCampaign(id)
	if c.LastError != nil {
		t.Errorf("expected cleared error, got %v", *c.LastError)
	}
}

func TestCreateArtifactDeduplicates(t *testing.T) {
	st := openTestStore(t)
	campaignID, _ := st.CreateCampaign(testCampaign())

	a := &Artifact{
		CampaignID: campaignID,
		Title:      "Post",
		Content:    "Body",
		URL:        "https://example.com/post/1",
		Meta:       map[string]string{"source": "test"},
	}
	id, err := st.CreateArtifact(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero artifact ID")
	}

	dup, err := st.CreateArtifact(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dup != 0 {
		t.Errorf("expected 0 for duplicate artifact, got %d", dup)
	}

	exists, err := st.ArtifactExists(campaignID, a.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected artifact to exist")
	}
}

func TestArtifactDedupIsPerCampaign(t *testing.T) {
	st := openTestStore(t)
	first, _ := st.CreateCampaign(testCampaign())
	second, _ := st.CreateCampaign(testCampaign())

	url := "https://example.com/shared"
	st.CreateArtifact(&Artifact{CampaignID: first, Title: "A", URL: url})

	id, err := st.CreateArtifact(&Artifact{CampaignID: second, Title: "A", URL: url})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Error("same URL under a different campaign should not be a duplicate")
	}
}

func TestListArtifacts(t *testing.T) {
	st := openTestStore(t)
	campaignID, _ := st.CreateCampaign(testCampaign())
	other, _ := st.CreateCampaign(testCampaign())

	st.CreateArtifact(&Artifact{CampaignID: campaignID, Title: "One", URL: "https://a.com/1"})
	st.CreateArtifact(&Artifact{CampaignID: campaignID, Title: "Two", URL: "https://a.com/2"})
	st.CreateArtifact(&Artifact{CampaignID: other, Title: "Other", URL: "https://b.com/1"})

	mine, err := st.ListArtifacts(campaignID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("expected 2 artifacts, got %d", len(mine))
	}

	all, err := st.ListArtifacts(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 artifacts, got %d", len(all))
	}
}

func TestLogsInsertQueryClear(t *testing.T) {
	st := openTestStore(t)
	campaignID := int64(7)

	st.InsertLog("info", "run started", &campaignID, `{"run_id":"abc"}`)
	st.InsertLog("error", "fetch failed", &campaignID, "")
	st.InsertLog("info", "unrelated", nil, "")

	errors, err := st.GetLogs(LogQuery{Level: "error"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(errors) != 1 || errors[0].Message != "fetch failed" {
		t.Errorf("unexpected error logs: %+v", errors)
	}

	forCampaign, err := st.GetLogs(LogQuery{CampaignID: campaignID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(forCampaign) != 2 {
		t.Errorf("expected 2 campaign logs, got %d", len(forCampaign))
	}

	deleted, err := st.ClearLogs("info")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}

	deleted, err = st.ClearLogs("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
}

func TestGetStats(t *testing.T) {
	st := openTestStore(t)
	st.CreateCampaign(testCampaign())
	paused := testCampaign()
	paused.Status = campaign.StatusPaused
	st.CreateCampaign(paused)
	st.InsertLog("info", "hello", nil, "")

	stats, err := st.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalCampaigns != 2 {
		t.Errorf("expected 2 campaigns, got %d", stats.TotalCampaigns)
	}
	if stats.CampaignsByStatus["active"] != 1 || stats.CampaignsByStatus["paused"] != 1 {
		t.Errorf("unexpected status counts: %v", stats.CampaignsByStatus)
	}
	if stats.TotalLogs != 1 {
		t.Errorf("expected 1 log, got %d", stats.TotalLogs)
	}
}
