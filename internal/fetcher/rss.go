package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"socialpress/internal/campaign"
	"socialpress/internal/errs"
	"socialpress/internal/logging"
)

const rssMaxItems = 20

// RSS fetches entries from RSS and Atom feeds. With full_content set
// the fetcher downloads each entry's page and extracts the article
// text instead of using the feed summary.
type RSS struct {
	settings map[string]string
	logger   *logging.Logger
}

// TestConnection parses the configured feed.
func (r *RSS) TestConnection(ctx context.Context) error {
	parser := gofeed.NewParser()
	if _, err := parser.ParseURLWithContext(r.settings["feed_url"], ctx); err != nil {
		return errs.Wrap(errs.APIError, err, "parsing feed %s", r.settings["feed_url"])
	}
	return nil
}

// Fetch returns the feed's entries as items.
func (r *RSS) Fetch(ctx context.Context, _ *campaign.Campaign) ([]campaign.Item, error) {
	feedURL := r.settings["feed_url"]

	parser := gofeed.NewParser()
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, errs.Wrap(errs.FetchError, err, "parsing feed %s", feedURL)
	}

	max := rssMaxItems
	if n, err := strconv.Atoi(r.settings["max_items"]); err == nil && n > 0 {
		max = n
	}
	fullContent := r.settings["full_content"] == "true"

	var items []campaign.Item
	for _, entry := range feed.Items {
		if len(items) >= max {
			break
		}
		item := r.normalize(ctx, entry, feed.Title, fullContent)
		if item == nil {
			continue
		}
		items = append(items, *item)
	}
	return items, nil
}

func (r *RSS) normalize(ctx context.Context, entry *gofeed.Item, feedTitle string, fullContent bool) *campaign.Item {
	link := entry.Link
	if link == "" {
		link = entry.GUID
	}
	if link == "" {
		return nil
	}

	title := strings.TrimSpace(entry.Title)
	if title == "" {
		return nil
	}

	var date string
	if entry.PublishedParsed != nil {
		date = entry.PublishedParsed.UTC().Format(time.RFC3339)
	} else if entry.UpdatedParsed != nil {
		date = entry.UpdatedParsed.UTC().Format(time.RFC3339)
	}

	content := entry.Content
	if content == "" {
		content = entry.Description
	}
	if fullContent {
		if extracted := r.extractContent(ctx, link); extracted != "" {
			content = extracted
		}
	}

	author := feedTitle
	if len(entry.Authors) > 0 && entry.Authors[0].Name != "" {
		author = entry.Authors[0].Name
	}

	var image string
	if entry.Image != nil {
		image = entry.Image.URL
	}

	return &campaign.Item{
		Title:   title,
		Content: content,
		Author:  author,
		Date:    date,
		URL:     link,
		Image:   image,
		Meta:    map[string]string{"source": feedTitle},
	}
}

// extractContent downloads the entry's page and runs readability over
// it. Failures fall back to the feed-provided summary.
func (r *RSS) extractContent(ctx context.Context, pageURL string) string {
	client := &http.Client{Timeout: 15 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "socialpress/1.0")

	resp, err := client.Do(req)
	if err != nil {
		r.logger.Debug("full content fetch failed", map[string]any{"url": pageURL, "error": err.Error()})
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		r.logger.Debug("full content fetch failed", map[string]any{"url": pageURL, "status": resp.StatusCode})
		return ""
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}

	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		r.logger.Debug("readability extraction failed", map[string]any{"url": pageURL, "error": err.Error()})
		return ""
	}

	if text := strings.TrimSpace(article.Content); len(text) > 100 {
		return text
	}
	return ""
}
