// Package scheduler decides which campaigns are due and runs them with
// bounded concurrency.
package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"socialpress/internal/campaign"
	"socialpress/internal/engine"
	"socialpress/internal/errs"
	"socialpress/internal/logging"
	"socialpress/internal/store"
)

// Runner processes a single campaign. Satisfied by *engine.Pipeline.
type Runner interface {
	Process(ctx context.Context, campaignID int64) (*engine.Result, error)
}

// Evaluate returns the IDs of campaigns due at now, in input order. It
// is a pure function of its arguments so schedule decisions can be
// tested without a clock or a store.
func Evaluate(now time.Time, campaigns []campaign.Campaign) []int64 {
	var due []int64
	for i := range campaigns {
		if campaigns[i].IsDue(now) {
			due = append(due, campaigns[i].ID)
		}
	}
	return due
}

// Scheduler runs due campaigns. A weighted semaphore bounds how many
// campaigns run at once across the whole process, and an in-flight set
// guarantees at most one concurrent run per campaign.
type Scheduler struct {
	store  *store.Store
	runner Runner
	logger *logging.Logger
	sem    *semaphore.Weighted

	mu       sync.Mutex
	inflight map[int64]struct{}
}

// New creates a Scheduler. maxConcurrent values below one fall back to
// serial execution.
func New(st *store.Store, runner Runner, logger *logging.Logger, maxConcurrent int64) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		store:    st,
		runner:   runner,
		logger:   logger,
		sem:      semaphore.NewWeighted(maxConcurrent),
		inflight: make(map[int64]struct{}),
	}
}

// Tick evaluates all active campaigns against now and runs the due
// ones. It blocks until every run started by this tick has finished.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	campaigns, err := s.store.ListActiveCampaigns()
	if err != nil {
		return err
	}

	byID := make(map[int64]*campaign.Campaign, len(campaigns))
	for i := range campaigns {
		byID[campaigns[i].ID] = &campaigns[i]
	}

	var wg sync.WaitGroup
	for _, id := range Evaluate(now, campaigns) {
		c := byID[id]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.run(ctx, c); err != nil && !errs.IsKind(err, errs.InactiveCampaign) {
				s.logger.Error("scheduled run failed", map[string]any{
					"campaign_id": c.ID,
					"error":       err.Error(),
				})
			}
		}()
	}
	wg.Wait()
	return nil
}

// RunCampaign runs one campaign on demand, subject to the same
// concurrency limits as scheduled runs. On-demand runs never flip a
// one-shot campaign to completed; only its due run does.
func (s *Scheduler) RunCampaign(ctx context.Context, campaignID int64) (*engine.Result, error) {
	c, err := s.store.GetCampaign(campaignID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errs.New(errs.InvalidCampaign, "campaign not found: %d", campaignID)
	}
	return s.runWithResult(ctx, c, false)
}

func (s *Scheduler) run(ctx context.Context, c *campaign.Campaign) error {
	_, err := s.runWithResult(ctx, c, true)
	return err
}

func (s *Scheduler) runWithResult(ctx context.Context, c *campaign.Campaign, dueRun bool) (*engine.Result, error) {
	if !s.tryAcquire(c.ID) {
		s.logger.Warning("campaign run already in progress", map[string]any{"campaign_id": c.ID})
		return nil, errs.New(errs.InvalidCampaign, "campaign %d is already running", c.ID)
	}
	defer s.release(c.ID)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	result, err := s.runner.Process(ctx, c.ID)

	// A one-shot campaign is done after its due attempt, whatever the
	// outcome. On-demand runs and runs rejected before starting leave
	// the status alone.
	if dueRun && c.Schedule.Type == campaign.ScheduleScheduled && !rejected(err) {
		completed := campaign.StatusCompleted
		if stateErr := s.store.UpdateCampaignRunState(c.ID, nil, nil, &completed); stateErr != nil {
			s.logger.Error("failed to complete one-shot campaign", map[string]any{
				"campaign_id": c.ID,
				"error":       stateErr.Error(),
			})
		}
	}

	return result, err
}

// rejected reports whether a run never started: the campaign was gone
// or not active when the pipeline looked it up.
func rejected(err error) bool {
	return errs.IsKind(err, errs.InvalidCampaign) || errs.IsKind(err, errs.InactiveCampaign)
}

func (s *Scheduler) tryAcquire(campaignID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.inflight[campaignID]; running {
		return false
	}
	s.inflight[campaignID] = struct{}{}
	return true
}

func (s *Scheduler) release(campaignID int64) {
	s.mu.Lock()
	delete(s.inflight, campaignID)
	s.mu.Unlock()
}
