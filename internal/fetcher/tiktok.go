package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"socialpress/internal/apiclient"
	"socialpress/internal/campaign"
	"socialpress/internal/errs"
)

const tiktokAPIBase = "https://open.tiktokapis.com/v2"

// TikTok fetches an account's videos via the open API.
type TikTok struct {
	settings map[string]string
	client   *apiclient.Client
}

type tiktokVideo struct {
	ID               string `json:"id"`
	CreateTime       int64  `json:"create_time"`
	ShareURL         string `json:"share_url"`
	VideoDescription string `json:"video_description"`
	EmbedHTML        string `json:"embed_html"`
	ThumbnailURL     string `json:"thumbnail_url"`
	Statistics       struct {
		LikeCount    int `json:"like_count"`
		CommentCount int `json:"comment_count"`
		ShareCount   int `json:"share_count"`
		ViewCount    int `json:"view_count"`
	} `json:"statistics"`
}

func (t *TikTok) authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + t.settings["access_token"]}
}

// TestConnection reads the authenticated user's info.
func (t *TikTok) TestConnection(ctx context.Context) error {
	var out struct {
		Data struct {
			User struct {
				OpenID string `json:"open_id"`
			} `json:"user"`
		} `json:"data"`
	}
	return t.client.RequestJSON(ctx, tiktokAPIBase+"/user/info/", apiclient.Options{
		Headers: t.authHeader(),
		Query:   url.Values{"fields": {"open_id,display_name"}},
	}, true, &out)
}

// Fetch returns the account's recent videos as items.
func (t *TikTok) Fetch(ctx context.Context, _ *campaign.Campaign) ([]campaign.Item, error) {
	endpoint := tiktokAPIBase + "/video/list/"
	query := url.Values{
		"max_count": {"20"},
		"fields":    {"id,create_time,share_url,video_description,statistics,embed_html,thumbnail_url"},
	}

	var response struct {
		Data struct {
			Videos []tiktokVideo `json:"videos"`
		} `json:"data"`
	}
	err := t.client.RequestJSON(ctx, endpoint, apiclient.Options{
		Headers: t.authHeader(),
		Query:   query,
	}, true, &response)
	if err != nil {
		return nil, errs.Wrap(errs.FetchError, err, "fetching TikTok videos")
	}

	items := make([]campaign.Item, 0, len(response.Data.Videos))
	for _, video := range response.Data.Videos {
		items = append(items, t.normalize(video))
	}
	return items, nil
}

func (t *TikTok) normalize(video tiktokVideo) campaign.Item {
	date := ""
	if video.CreateTime > 0 {
		date = time.Unix(video.CreateTime, 0).UTC().Format(time.RFC3339)
	}

	return campaign.Item{
		Title:   tiktokTitle(video),
		Content: tiktokContent(video),
		Author:  t.settings["username"],
		Date:    date,
		URL:     video.ShareURL,
		Image:   video.ThumbnailURL,
		Meta: map[string]string{
			"tiktok_id": video.ID,
			"likes":     strconv.Itoa(video.Statistics.LikeCount),
			"comments":  strconv.Itoa(video.Statistics.CommentCount),
			"shares":    strconv.Itoa(video.Statistics.ShareCount),
			"views":     strconv.Itoa(video.Statistics.ViewCount),
		},
	}
}

func tiktokTitle(video tiktokVideo) string {
	if line := firstLine(video.VideoDescription); line != "" {
		return trimWords(line, 10)
	}
	return "TikTok Video"
}

func tiktokContent(video tiktokVideo) string {
	content := ""
	if video.VideoDescription != "" {
		content += video.VideoDescription + "\n\n"
	}
	if video.EmbedHTML != "" {
		content += video.EmbedHTML
	} else if video.ShareURL != "" {
		content += fmt.Sprintf(`<p><a href="%s" target="_blank">Watch on TikTok</a></p>`, video.ShareURL)
	}
	return content
}
