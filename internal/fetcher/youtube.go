package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"socialpress/internal/apiclient"
	"socialpress/internal/campaign"
	"socialpress/internal/errs"
)

const youtubeAPIBase = "https://www.googleapis.com/youtube/v3"

// YouTube fetches a channel's uploads via the Data API.
type YouTube struct {
	settings map[string]string
	client   *apiclient.Client
}

type youtubeSnippet struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelTitle string `json:"channelTitle"`
	PublishedAt  string `json:"publishedAt"`
	Thumbnails   struct {
		High struct {
			URL string `json:"url"`
		} `json:"high"`
		Default struct {
			URL string `json:"url"`
		} `json:"default"`
	} `json:"thumbnails"`
}

type youtubeStatistics struct {
	ViewCount    string `json:"viewCount"`
	LikeCount    string `json:"likeCount"`
	CommentCount string `json:"commentCount"`
}

// TestConnection reads the channel object.
func (y *YouTube) TestConnection(ctx context.Context) error {
	var response struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	query := url.Values{
		"part": {"snippet"},
		"id":   {y.settings["channel_id"]},
		"key":  {y.settings["api_key"]},
	}
	if err := y.client.RequestJSON(ctx, youtubeAPIBase+"/channels", apiclient.Options{Query: query}, true, &response); err != nil {
		return err
	}
	if len(response.Items) == 0 {
		return errs.New(errs.APIError, "YouTube channel not found: %s", y.settings["channel_id"])
	}
	return nil
}

// Fetch returns the channel's recent uploads as items.
func (y *YouTube) Fetch(ctx context.Context, _ *campaign.Campaign) ([]campaign.Item, error) {
	playlistID, err := y.uploadsPlaylistID(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.FetchError, err, "resolving uploads playlist")
	}

	maxResults := 10
	if n, err := strconv.Atoi(y.settings["max_results"]); err == nil && n > 0 {
		maxResults = n
	}
	if maxResults > 50 {
		maxResults = 50
	}

	var playlist struct {
		Items []struct {
			Snippet        youtubeSnippet `json:"snippet"`
			ContentDetails struct {
				VideoID string `json:"videoId"`
			} `json:"contentDetails"`
		} `json:"items"`
	}
	query := url.Values{
		"part":       {"snippet,contentDetails"},
		"playlistId": {playlistID},
		"maxResults": {strconv.Itoa(maxResults)},
		"key":        {y.settings["api_key"]},
	}
	if err := y.client.RequestJSON(ctx, youtubeAPIBase+"/playlistItems", apiclient.Options{Query: query}, true, &playlist); err != nil {
		return nil, errs.Wrap(errs.FetchError, err, "fetching playlist items")
	}
	if len(playlist.Items) == 0 {
		return nil, nil
	}

	videoIDs := make([]string, 0, len(playlist.Items))
	for _, item := range playlist.Items {
		videoIDs = append(videoIDs, item.ContentDetails.VideoID)
	}
	stats, err := y.videoStatistics(ctx, videoIDs)
	if err != nil {
		return nil, errs.Wrap(errs.FetchError, err, "fetching video details")
	}

	items := make([]campaign.Item, 0, len(playlist.Items))
	for _, entry := range playlist.Items {
		items = append(items, y.normalize(entry.Snippet, entry.ContentDetails.VideoID, stats[entry.ContentDetails.VideoID]))
	}
	return items, nil
}

func (y *YouTube) uploadsPlaylistID(ctx context.Context) (string, error) {
	var response struct {
		Items []struct {
			ContentDetails struct {
				RelatedPlaylists struct {
					Uploads string `json:"uploads"`
				} `json:"relatedPlaylists"`
			} `json:"contentDetails"`
		} `json:"items"`
	}
	query := url.Values{
		"part": {"contentDetails"},
		"id":   {y.settings["channel_id"]},
		"key":  {y.settings["api_key"]},
	}
	if err := y.client.RequestJSON(ctx, youtubeAPIBase+"/channels", apiclient.Options{Query: query}, true, &response); err != nil {
		return "", err
	}
	if len(response.Items) == 0 || response.Items[0].ContentDetails.RelatedPlaylists.Uploads == "" {
		return "", errs.New(errs.APIError, "could not find uploads playlist for channel %s", y.settings["channel_id"])
	}
	return response.Items[0].ContentDetails.RelatedPlaylists.Uploads, nil
}

func (y *YouTube) videoStatistics(ctx context.Context, videoIDs []string) (map[string]youtubeStatistics, error) {
	var response struct {
		Items []struct {
			ID         string            `json:"id"`
			Statistics youtubeStatistics `json:"statistics"`
		} `json:"items"`
	}
	query := url.Values{
		"part": {"statistics"},
		"id":   {strings.Join(videoIDs, ",")},
		"key":  {y.settings["api_key"]},
	}
	if err := y.client.RequestJSON(ctx, youtubeAPIBase+"/videos", apiclient.Options{Query: query}, true, &response); err != nil {
		return nil, err
	}
	stats := make(map[string]youtubeStatistics, len(response.Items))
	for _, item := range response.Items {
		stats[item.ID] = item.Statistics
	}
	return stats, nil
}

func (y *YouTube) normalize(snippet youtubeSnippet, videoID string, stats youtubeStatistics) campaign.Item {
	content := ""
	if snippet.Description != "" {
		content += snippet.Description + "\n\n"
	}
	content += fmt.Sprintf(
		`<div class="youtube-video-container"><iframe width="560" height="315" src="https://www.youtube.com/embed/%s" frameborder="0" allowfullscreen></iframe></div>`,
		videoID,
	)

	image := snippet.Thumbnails.High.URL
	if image == "" {
		image = snippet.Thumbnails.Default.URL
	}

	item := campaign.Item{
		Title:   snippet.Title,
		Content: content,
		Author:  snippet.ChannelTitle,
		Date:    snippet.PublishedAt,
		URL:     fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID),
		Image:   image,
		Meta:    map[string]string{"youtube_id": videoID},
	}
	if stats.ViewCount != "" {
		item.Meta["views"] = stats.ViewCount
	}
	if stats.LikeCount != "" {
		item.Meta["likes"] = stats.LikeCount
	}
	if stats.CommentCount != "" {
		item.Meta["comments"] = stats.CommentCount
	}
	return item
}
