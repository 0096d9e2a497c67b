// Package engine runs the per-campaign content pipeline: fetch,
// filter, and per item dedup, translate, template, publish.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"socialpress/internal/campaign"
	"socialpress/internal/errs"
	"socialpress/internal/logging"
	"socialpress/internal/provider"
	"socialpress/internal/store"
)

// Pipeline processes campaigns. All dependencies are injected; the
// pipeline itself is stateless and safe for concurrent Process calls
// on distinct campaigns.
type Pipeline struct {
	store       *store.Store
	fetchers    *provider.Registry[provider.Fetcher]
	translators *provider.Registry[provider.Translator]
	logger      *logging.Logger
	now         func() time.Time
}

// New creates a Pipeline.
func New(st *store.Store, fetchers *provider.Registry[provider.Fetcher], translators *provider.Registry[provider.Translator], logger *logging.Logger) *Pipeline {
	return &Pipeline{
		store:       st,
		fetchers:    fetchers,
		translators: translators,
		logger:      logger,
		now:         time.Now,
	}
}

// Result summarizes one campaign run.
type Result struct {
	CampaignID int64
	Fetched    int
	Filtered   int
	Published  int
	Duplicates int
	Failed     int
}

// Process runs the full pipeline for one campaign. Item-level failures
// are logged and skipped; the run only fails outright when the campaign
// cannot run at all or the fetch itself fails. On any outcome short of
// those, last_run advances and last_error is cleared.
func (p *Pipeline) Process(ctx context.Context, campaignID int64) (*Result, error) {
	c, err := p.store.GetCampaign(campaignID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errs.New(errs.InvalidCampaign, "campaign not found: %d", campaignID)
	}
	if c.Status != campaign.StatusActive {
		return nil, errs.New(errs.InactiveCampaign, "campaign %d is not active (status: %s)", c.ID, c.Status)
	}

	runCtx := map[string]any{
		"campaign_id": c.ID,
		"run_id":      uuid.NewString(),
	}
	p.logger.Info("campaign run started", runCtx)

	items, err := p.fetch(ctx, c, runCtx)
	if err != nil {
		p.recordFailure(c.ID, err, runCtx)
		return nil, err
	}

	result := &Result{CampaignID: c.ID, Fetched: len(items)}
	items = campaign.ApplyFilters(items, c.Filters)
	result.Filtered = result.Fetched - len(items)

	if len(items) == 0 {
		msg := "no items found"
		if result.Fetched > 0 {
			msg = "all items filtered"
		}
		p.logger.Info(msg, contextWith(runCtx, "kind", string(errs.NoItems)))
		p.finishRun(c.ID, runCtx)
		return result, nil
	}

	// A translator misconfiguration fails each item, not the run.
	translate, translateErr := p.translator(c)

	for _, item := range items {
		switch err := p.processItem(ctx, c, item, translate, translateErr, runCtx); {
		case err == nil:
			result.Published++
		case errs.IsKind(err, errs.DuplicateItem):
			result.Duplicates++
			p.logger.Error("duplicate item skipped", contextWith(runCtx, "url", item.URL))
		default:
			result.Failed++
			p.logger.Error("item processing failed", contextWith(runCtx, "url", item.URL, "error", err.Error()))
		}
	}

	p.logger.Info("campaign run finished", contextWith(runCtx,
		"fetched", result.Fetched,
		"published", result.Published,
		"duplicates", result.Duplicates,
		"failed", result.Failed,
	))
	p.finishRun(c.ID, runCtx)
	return result, nil
}

// TestFetcher validates the campaign's fetcher settings and probes the
// provider.
func (p *Pipeline) TestFetcher(ctx context.Context, c *campaign.Campaign) error {
	return p.fetchers.TestConnection(ctx, c.FetcherType, c.FetcherSettings)
}

func (p *Pipeline) fetch(ctx context.Context, c *campaign.Campaign, runCtx map[string]any) ([]campaign.Item, error) {
	if err := p.fetchers.Validate(c.FetcherType, c.FetcherSettings); err != nil {
		return nil, err
	}
	fetcher, err := p.fetchers.Get(c.FetcherType, c.FetcherSettings)
	if err != nil {
		return nil, err
	}
	items, err := fetcher.Fetch(ctx, c)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("fetch complete", contextWith(runCtx, "items", len(items)))
	return items, nil
}

// translator resolves the campaign's translation function, or nil when
// translation is disabled.
func (p *Pipeline) translator(c *campaign.Campaign) (provider.Translator, error) {
	if !c.EnableTranslation {
		return nil, nil
	}
	if c.TargetLanguage == "" {
		return nil, errs.New(errs.TranslationError, "translation enabled but no target language configured")
	}
	if err := p.translators.Validate(c.TranslatorType, c.TranslatorSettings); err != nil {
		return nil, err
	}
	return p.translators.Get(c.TranslatorType, c.TranslatorSettings)
}

func (p *Pipeline) processItem(ctx context.Context, c *campaign.Campaign, item campaign.Item, translate provider.Translator, translateErr error, runCtx map[string]any) error {
	exists, err := p.store.ArtifactExists(c.ID, item.URL)
	if err != nil {
		return errs.Wrap(errs.PublishError, err, "checking for duplicate")
	}
	if exists {
		return errs.New(errs.DuplicateItem, "item already published: %s", item.URL)
	}

	if translateErr != nil {
		return translateErr
	}
	if translate != nil {
		item = p.translateItem(ctx, item, translate, c.TargetLanguage, runCtx)
	}

	id, err := p.store.CreateArtifact(&store.Artifact{
		CampaignID:    c.ID,
		Title:         item.Title,
		Content:       Render(c.Template, item),
		URL:           item.URL,
		Author:        item.Author,
		PublishedDate: item.Date,
		Image:         item.Image,
		Meta:          item.Meta,
	})
	if err != nil {
		return errs.Wrap(errs.PublishError, err, "publishing item")
	}
	if id == 0 {
		// Lost the insert race to a concurrent run.
		return errs.New(errs.DuplicateItem, "item already published: %s", item.URL)
	}

	p.logger.Debug("item published", contextWith(runCtx, "artifact_id", id, "url", item.URL))
	return nil
}

// translateItem translates the title and content. A failed field keeps
// its original text so one API hiccup does not lose the item.
func (p *Pipeline) translateItem(ctx context.Context, item campaign.Item, translate provider.Translator, targetLang string, runCtx map[string]any) campaign.Item {
	if title, err := translate.Translate(ctx, item.Title, targetLang); err == nil {
		item.Title = title
	} else {
		p.logger.Warning("title translation failed", contextWith(runCtx, "url", item.URL, "error", err.Error()))
	}
	if content, err := translate.Translate(ctx, item.Content, targetLang); err == nil {
		item.Content = content
	} else {
		p.logger.Warning("content translation failed", contextWith(runCtx, "url", item.URL, "error", err.Error()))
	}
	return item
}

// finishRun advances last_run and clears any stale error.
func (p *Pipeline) finishRun(campaignID int64, runCtx map[string]any) {
	now := p.now()
	empty := ""
	if err := p.store.UpdateCampaignRunState(campaignID, &now, &empty, nil); err != nil {
		p.logger.Error("failed to update run state", contextWith(runCtx, "error", err.Error()))
	}
}

// recordFailure stores the error on the campaign without touching
// last_run, so recurring schedules retry on the next tick.
func (p *Pipeline) recordFailure(campaignID int64, runErr error, runCtx map[string]any) {
	p.logger.Error("campaign run failed", contextWith(runCtx, "error", runErr.Error()))
	msg := runErr.Error()
	if err := p.store.UpdateCampaignRunState(campaignID, nil, &msg, nil); err != nil {
		p.logger.Error("failed to update run state", contextWith(runCtx, "error", err.Error()))
	}
}

// contextWith copies the base run context and appends key/value pairs.
func contextWith(base map[string]any, kv ...any) map[string]any {
	out := make(map[string]any, len(base)+len(kv)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}
