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

const twitterAPIBase = "https://api.twitter.com/2"

// Twitter fetches tweets from one account via the v2 API.
type Twitter struct {
	settings map[string]string
	client   *apiclient.Client
}

type tweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		LikeCount    int `json:"like_count"`
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
		QuoteCount   int `json:"quote_count"`
	} `json:"public_metrics"`
	Entities struct {
		Hashtags []struct {
			Tag string `json:"tag"`
		} `json:"hashtags"`
		Mentions []struct {
			Username string `json:"username"`
		} `json:"mentions"`
	} `json:"entities"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
}

type twitterMedia struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
}

func (t *Twitter) authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + t.settings["bearer_token"]}
}

// TestConnection looks up the configured user.
func (t *Twitter) TestConnection(ctx context.Context) error {
	_, err := t.userID(ctx)
	return err
}

// Fetch returns the account's recent tweets as items.
func (t *Twitter) Fetch(ctx context.Context, _ *campaign.Campaign) ([]campaign.Item, error) {
	userID, err := t.userID(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.FetchError, err, "resolving Twitter user")
	}

	endpoint := fmt.Sprintf("%s/users/%s/tweets", twitterAPIBase, userID)
	query := url.Values{
		"max_results":  {"100"},
		"tweet.fields": {"created_at,entities,public_metrics,attachments"},
		"expansions":   {"attachments.media_keys,author_id"},
		"media.fields": {"url,preview_image_url"},
	}

	var response struct {
		Data     []tweet `json:"data"`
		Includes struct {
			Media []twitterMedia `json:"media"`
		} `json:"includes"`
	}
	err = t.client.RequestJSON(ctx, endpoint, apiclient.Options{
		Headers: t.authHeader(),
		Query:   query,
	}, true, &response)
	if err != nil {
		return nil, errs.Wrap(errs.FetchError, err, "fetching tweets")
	}

	mediaByKey := make(map[string]twitterMedia, len(response.Includes.Media))
	for _, m := range response.Includes.Media {
		mediaByKey[m.MediaKey] = m
	}

	items := make([]campaign.Item, 0, len(response.Data))
	for _, tw := range response.Data {
		items = append(items, t.normalize(tw, mediaByKey))
	}
	return items, nil
}

func (t *Twitter) userID(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/users/by/username/%s", twitterAPIBase, t.settings["username"])
	var response struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := t.client.RequestJSON(ctx, endpoint, apiclient.Options{Headers: t.authHeader()}, true, &response); err != nil {
		return "", err
	}
	if response.Data.ID == "" {
		return "", errs.New(errs.APIError, "Twitter user not found: %s", t.settings["username"])
	}
	return response.Data.ID, nil
}

func (t *Twitter) normalize(tw tweet, mediaByKey map[string]twitterMedia) campaign.Item {
	var media []twitterMedia
	for _, key := range tw.Attachments.MediaKeys {
		if m, ok := mediaByKey[key]; ok {
			media = append(media, m)
		}
	}

	item := campaign.Item{
		Title:   tweetTitle(tw),
		Content: tweetContent(tw, media),
		Author:  t.settings["username"],
		Date:    tw.CreatedAt,
		URL:     fmt.Sprintf("https://twitter.com/%s/status/%s", t.settings["username"], tw.ID),
		Image:   tweetImage(media),
		Meta:    map[string]string{"twitter_id": tw.ID},
	}

	item.Meta["likes"] = strconv.Itoa(tw.PublicMetrics.LikeCount)
	item.Meta["retweets"] = strconv.Itoa(tw.PublicMetrics.RetweetCount)
	item.Meta["replies"] = strconv.Itoa(tw.PublicMetrics.ReplyCount)
	item.Meta["quotes"] = strconv.Itoa(tw.PublicMetrics.QuoteCount)

	if len(tw.Entities.Hashtags) > 0 {
		tags := make([]string, len(tw.Entities.Hashtags))
		for i, h := range tw.Entities.Hashtags {
			tags[i] = h.Tag
		}
		item.Meta["hashtags"] = strings.Join(tags, ",")
	}
	if len(tw.Entities.Mentions) > 0 {
		mentions := make([]string, len(tw.Entities.Mentions))
		for i, m := range tw.Entities.Mentions {
			mentions[i] = m.Username
		}
		item.Meta["mentions"] = strings.Join(mentions, ",")
	}

	return item
}

func tweetTitle(tw tweet) string {
	if line := firstLine(tw.Text); line != "" {
		return trimWords(line, 10)
	}
	return "Tweet"
}

func tweetContent(tw tweet, media []twitterMedia) string {
	content := tw.Text
	if len(media) == 0 {
		return content
	}
	content += "\n\n"
	for _, m := range media {
		switch m.Type {
		case "photo":
			content += fmt.Sprintf(`<img src="%s" alt="Tweet Image" class="twitter-media">`, m.URL)
		case "video", "animated_gif":
			if m.PreviewImageURL != "" {
				content += fmt.Sprintf(`<img src="%s" alt="Tweet Video Preview" class="twitter-media">`, m.PreviewImageURL)
			}
		}
	}
	return content
}

func tweetImage(media []twitterMedia) string {
	for _, m := range media {
		switch m.Type {
		case "photo":
			return m.URL
		case "video", "animated_gif":
			return m.PreviewImageURL
		}
	}
	return ""
}
