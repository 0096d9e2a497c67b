package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"socialpress/internal/campaign"
	"socialpress/internal/engine"
	"socialpress/internal/errs"
	"socialpress/internal/logging"
	"socialpress/internal/store"
)

type stubRunner struct {
	mu       sync.Mutex
	runs     []int64
	block    chan struct{}
	err      error
	active   int32
	maxSeen  int32
}

func (r *stubRunner) Process(ctx context.Context, campaignID int64) (*engine.Result, error) {
	n := atomic.AddInt32(&r.active, 1)
	for {
		max := atomic.LoadInt32(&r.maxSeen)
		if n <= max || atomic.CompareAndSwapInt32(&r.maxSeen, max, n) {
			break
		}
	}
	defer atomic.AddInt32(&r.active, -1)

	if r.block != nil {
		<-r.block
	}

	r.mu.Lock()
	r.runs = append(r.runs, campaignID)
	r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	return &engine.Result{CampaignID: campaignID, Published: 1}, nil
}

func (r *stubRunner) runCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func createCampaign(t *testing.T, st *store.Store, mutate func(*campaign.Campaign)) int64 {
	t.Helper()
	c := &campaign.Campaign{
		Title:       "Test",
		Status:      campaign.StatusActive,
		FetcherType: "stub",
		Schedule:    campaign.Schedule{Type: campaign.ScheduleRecurring, Interval: campaign.IntervalHourly},
	}
	if mutate != nil {
		mutate(c)
	}
	id, err := st.CreateCampaign(c)
	if err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}
	return id
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	hourAgo := now.Add(-time.Hour)
	soon := now.Add(time.Hour)

	campaigns := []campaign.Campaign{
		{ID: 1, Schedule: campaign.Schedule{Type: campaign.ScheduleManual}},
		{ID: 2, Schedule: campaign.Schedule{Type: campaign.ScheduleRecurring, Interval: campaign.IntervalHourly}},
		{ID: 3, Schedule: campaign.Schedule{Type: campaign.ScheduleRecurring, Interval: campaign.IntervalHourly}, LastRun: &hourAgo},
		{ID: 4, Schedule: campaign.Schedule{Type: campaign.ScheduleScheduled, At: &hourAgo}},
		{ID: 5, Schedule: campaign.Schedule{Type: campaign.ScheduleScheduled, At: &soon}},
	}

	due := Evaluate(now, campaigns)
	want := []int64{2, 3, 4}
	if len(due) != len(want) {
		t.Fatalf("expected %v, got %v", want, due)
	}
	for i := range want {
		if due[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, due)
		}
	}
}

func TestEvaluateEmpty(t *testing.T) {
	if due := Evaluate(time.Now(), nil); due != nil {
		t.Errorf("expected no due campaigns, got %v", due)
	}
}

func TestRunCampaignUnknown(t *testing.T) {
	st := openTestStore(t)
	s := New(st, &stubRunner{}, logging.NewNop(), 1)

	_, err := s.RunCampaign(context.Background(), 99)
	if !errs.IsKind(err, errs.InvalidCampaign) {
		t.Errorf("expected invalid_campaign, got %v", err)
	}
}

func TestRunCampaignDelegates(t *testing.T) {
	st := openTestStore(t)
	runner := &stubRunner{}
	s := New(st, runner, logging.NewNop(), 1)
	id := createCampaign(t, st, nil)

	result, err := s.RunCampaign(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Published != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if runner.runCount() != 1 {
		t.Errorf("expected 1 run, got %d", runner.runCount())
	}
}

func TestAtMostOneRunPerCampaign(t *testing.T) {
	st := openTestStore(t)
	runner := &stubRunner{block: make(chan struct{})}
	s := New(st, runner, logging.NewNop(), 4)
	id := createCampaign(t, st, nil)

	firstErr := make(chan error, 1)
	go func() {
		_, err := s.RunCampaign(context.Background(), id)
		firstErr <- err
	}()

	// Wait until the first run is inside Process, then try again.
	for atomic.LoadInt32(&runner.active) == 0 {
		time.Sleep(time.Millisecond)
	}
	_, err := s.RunCampaign(context.Background(), id)
	if err == nil {
		t.Error("second concurrent run of the same campaign should be rejected")
	}

	close(runner.block)
	if err := <-firstErr; err != nil {
		t.Errorf("first run failed: %v", err)
	}
	if runner.runCount() != 1 {
		t.Errorf("expected exactly 1 run, got %d", runner.runCount())
	}
}

func TestTickRunsDueCampaigns(t *testing.T) {
	st := openTestStore(t)
	runner := &stubRunner{}
	s := New(st, runner, logging.NewNop(), 2)

	createCampaign(t, st, nil) // recurring, never ran: due
	createCampaign(t, st, func(c *campaign.Campaign) {
		c.Schedule = campaign.Schedule{Type: campaign.ScheduleManual}
	})
	createCampaign(t, st, func(c *campaign.Campaign) {
		c.Status = campaign.StatusPaused
	})

	if err := s.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.runCount() != 1 {
		t.Errorf("expected 1 run, got %d", runner.runCount())
	}
}

func TestTickBoundsConcurrency(t *testing.T) {
	st := openTestStore(t)
	runner := &stubRunner{}
	s := New(st, runner, logging.NewNop(), 1)

	for i := 0; i < 4; i++ {
		createCampaign(t, st, nil)
	}

	if err := s.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.runCount() != 4 {
		t.Errorf("expected 4 runs, got %d", runner.runCount())
	}
	if max := atomic.LoadInt32(&runner.maxSeen); max > 1 {
		t.Errorf("expected at most 1 concurrent run, saw %d", max)
	}
}

func TestScheduledCampaignCompletesAfterRun(t *testing.T) {
	st := openTestStore(t)
	runner := &stubRunner{}
	s := New(st, runner, logging.NewNop(), 1)

	past := time.Now().Add(-time.Hour)
	id := createCampaign(t, st, func(c *campaign.Campaign) {
		c.Schedule = campaign.Schedule{Type: campaign.ScheduleScheduled, At: &past}
	})

	if err := s.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, _ := st.GetCampaign(id)
	if c.Status != campaign.StatusCompleted {
		t.Errorf("one-shot campaign should be completed after its run, got %q", c.Status)
	}

	// A later tick must not run it again.
	if err := s.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.runCount() != 1 {
		t.Errorf("one-shot campaign ran %d times, want 1", runner.runCount())
	}
}

func TestScheduledCampaignCompletesEvenOnFailure(t *testing.T) {
	st := openTestStore(t)
	runner := &stubRunner{err: errs.New(errs.FetchError, "boom")}
	s := New(st, runner, logging.NewNop(), 1)

	past := time.Now().Add(-time.Hour)
	id := createCampaign(t, st, func(c *campaign.Campaign) {
		c.Schedule = campaign.Schedule{Type: campaign.ScheduleScheduled, At: &past}
	})

	_ = s.Tick(context.Background(), time.Now())

	c, _ := st.GetCampaign(id)
	if c.Status != campaign.StatusCompleted {
		t.Errorf("failed one-shot campaign should still complete, got %q", c.Status)
	}
}

func TestRejectedRunKeepsStatus(t *testing.T) {
	st := openTestStore(t)
	runner := &stubRunner{err: errs.New(errs.InactiveCampaign, "campaign is not active")}
	s := New(st, runner, logging.NewNop(), 1)

	past := time.Now().Add(-time.Hour)
	id := createCampaign(t, st, func(c *campaign.Campaign) {
		c.Status = campaign.StatusPaused
		c.Schedule = campaign.Schedule{Type: campaign.ScheduleScheduled, At: &past}
	})

	_, err := s.RunCampaign(context.Background(), id)
	if !errs.IsKind(err, errs.InactiveCampaign) {
		t.Fatalf("expected inactive_campaign, got %v", err)
	}

	c, _ := st.GetCampaign(id)
	if c.Status != campaign.StatusPaused {
		t.Errorf("rejected run must not change status, got %q", c.Status)
	}
}

func TestTickRejectedRunKeepsScheduledStatus(t *testing.T) {
	st := openTestStore(t)
	runner := &stubRunner{err: errs.New(errs.InactiveCampaign, "paused mid-tick")}
	s := New(st, runner, logging.NewNop(), 1)

	past := time.Now().Add(-time.Hour)
	id := createCampaign(t, st, func(c *campaign.Campaign) {
		c.Schedule = campaign.Schedule{Type: campaign.ScheduleScheduled, At: &past}
	})

	if err := s.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, _ := st.GetCampaign(id)
	if c.Status != campaign.StatusActive {
		t.Errorf("a run rejected mid-tick must not complete the campaign, got %q", c.Status)
	}
}

func TestOnDemandRunDoesNotCompleteScheduledCampaign(t *testing.T) {
	st := openTestStore(t)
	runner := &stubRunner{}
	s := New(st, runner, logging.NewNop(), 1)

	soon := time.Now().Add(time.Hour)
	id := createCampaign(t, st, func(c *campaign.Campaign) {
		c.Schedule = campaign.Schedule{Type: campaign.ScheduleScheduled, At: &soon}
	})

	if _, err := s.RunCampaign(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, _ := st.GetCampaign(id)
	if c.Status != campaign.StatusActive {
		t.Fatalf("manual run must not complete a one-shot campaign early, got %q", c.Status)
	}

	// The due fire still happens and completes it.
	if err := s.Tick(context.Background(), soon.Add(time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, _ = st.GetCampaign(id)
	if c.Status != campaign.StatusCompleted {
		t.Errorf("due run should complete the campaign, got %q", c.Status)
	}
	if runner.runCount() != 2 {
		t.Errorf("expected 2 runs, got %d", runner.runCount())
	}
}
