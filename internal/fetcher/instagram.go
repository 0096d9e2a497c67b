package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"socialpress/internal/apiclient"
	"socialpress/internal/campaign"
	"socialpress/internal/errs"
)

const instagramAPIVersion = "v18.0"

// Instagram fetches media from a business account via the Graph API.
// Optional settings: content_type (user, hashtag, tagged), search_query
// (hashtag name), max_items.
type Instagram struct {
	settings map[string]string
	client   *apiclient.Client
}

type instagramMedia struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaType     string `json:"media_type"`
	MediaURL      string `json:"media_url"`
	ThumbnailURL  string `json:"thumbnail_url"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	LikeCount     int    `json:"like_count"`
	CommentsCount int    `json:"comments_count"`
}

const instagramMediaFields = "id,caption,media_type,media_url,thumbnail_url,permalink,timestamp,like_count,comments_count"

// TestConnection reads the business account's media edge with a limit
// of one.
func (i *Instagram) TestConnection(ctx context.Context) error {
	endpoint := fmt.Sprintf("https://graph.facebook.com/%s/%s/media", instagramAPIVersion, i.settings["user_id"])
	var out struct {
		Data []instagramMedia `json:"data"`
	}
	return i.client.RequestJSON(ctx, endpoint, apiclient.Options{Query: url.Values{
		"access_token": {i.settings["access_token"]},
		"limit":        {"1"},
		"fields":       {"id"},
	}}, true, &out)
}

// Fetch returns recent media as items. The content_type setting selects
// the media edge: the account's own posts, a hashtag, or tagged posts.
func (i *Instagram) Fetch(ctx context.Context, _ *campaign.Campaign) ([]campaign.Item, error) {
	limit := 10
	if n, err := strconv.Atoi(i.settings["max_items"]); err == nil && n > 0 {
		limit = n
	}

	var (
		media []instagramMedia
		err   error
	)
	switch i.settings["content_type"] {
	case "", "user":
		media, err = i.fetchEdge(ctx, i.settings["user_id"], "media", limit)
	case "hashtag":
		media, err = i.fetchHashtag(ctx, limit)
	case "tagged":
		media, err = i.fetchEdge(ctx, i.settings["user_id"], "tags", limit)
	default:
		return nil, errs.New(errs.FetchError, "invalid Instagram content type: %s", i.settings["content_type"])
	}
	if err != nil {
		return nil, errs.Wrap(errs.FetchError, err, "fetching Instagram media")
	}

	items := make([]campaign.Item, 0, len(media))
	for _, m := range media {
		items = append(items, normalizeInstagram(m))
	}
	return items, nil
}

func (i *Instagram) fetchEdge(ctx context.Context, objectID, edge string, limit int) ([]instagramMedia, error) {
	endpoint := fmt.Sprintf("https://graph.facebook.com/%s/%s/%s", instagramAPIVersion, objectID, edge)
	var response struct {
		Data []instagramMedia `json:"data"`
	}
	err := i.client.RequestJSON(ctx, endpoint, apiclient.Options{Query: url.Values{
		"access_token": {i.settings["access_token"]},
		"limit":        {strconv.Itoa(limit)},
		"fields":       {instagramMediaFields},
	}}, true, &response)
	if err != nil {
		return nil, err
	}
	return response.Data, nil
}

func (i *Instagram) fetchHashtag(ctx context.Context, limit int) ([]instagramMedia, error) {
	searchEndpoint := fmt.Sprintf("https://graph.facebook.com/%s/ig_hashtag_search", instagramAPIVersion)
	var search struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	err := i.client.RequestJSON(ctx, searchEndpoint, apiclient.Options{Query: url.Values{
		"user_id":      {i.settings["user_id"]},
		"q":            {i.settings["search_query"]},
		"access_token": {i.settings["access_token"]},
	}}, true, &search)
	if err != nil {
		return nil, err
	}
	if len(search.Data) == 0 {
		return nil, errs.New(errs.APIError, "Instagram hashtag not found: %s", i.settings["search_query"])
	}

	endpoint := fmt.Sprintf("https://graph.facebook.com/%s/%s/recent_media", instagramAPIVersion, search.Data[0].ID)
	var response struct {
		Data []instagramMedia `json:"data"`
	}
	err = i.client.RequestJSON(ctx, endpoint, apiclient.Options{Query: url.Values{
		"user_id":      {i.settings["user_id"]},
		"access_token": {i.settings["access_token"]},
		"limit":        {strconv.Itoa(limit)},
		"fields":       {instagramMediaFields},
	}}, true, &response)
	if err != nil {
		return nil, err
	}
	return response.Data, nil
}

var hashtagRe = regexp.MustCompile(`#([^\s#]+)`)

func normalizeInstagram(m instagramMedia) campaign.Item {
	image := m.MediaURL
	if m.MediaType == "VIDEO" && m.ThumbnailURL != "" {
		image = m.ThumbnailURL
	}

	var hashtags []string
	for _, match := range hashtagRe.FindAllStringSubmatch(m.Caption, -1) {
		hashtags = append(hashtags, match[1])
	}

	item := campaign.Item{
		Title:   trimWords(m.Caption, 10),
		Content: m.Caption,
		Author:  "Instagram User",
		Date:    m.Timestamp,
		URL:     m.Permalink,
		Image:   image,
		Meta: map[string]string{
			"instagram_id": m.ID,
			"media_type":   m.MediaType,
			"likes":        strconv.Itoa(m.LikeCount),
			"comments":     strconv.Itoa(m.CommentsCount),
		},
	}
	if len(hashtags) > 0 {
		item.Meta["hashtags"] = strings.Join(hashtags, ",")
	}
	return item
}
