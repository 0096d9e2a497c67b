package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"socialpress/internal/apiclient"
	"socialpress/internal/campaign"
	"socialpress/internal/errs"
)

const facebookAPIVersion = "v17.0"

// Facebook fetches posts from a Facebook page via the Graph API.
type Facebook struct {
	settings map[string]string
	client   *apiclient.Client
}

type facebookPost struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	CreatedTime  string `json:"created_time"`
	PermalinkURL string `json:"permalink_url"`
	FullPicture  string `json:"full_picture"`
	From         struct {
		Name string `json:"name"`
	} `json:"from"`
	Attachments struct {
		Data []struct {
			Type        string `json:"type"`
			URL         string `json:"url"`
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"data"`
	} `json:"attachments"`
	Shares struct {
		Count int `json:"count"`
	} `json:"shares"`
}

// TestConnection reads the page object to verify the token.
func (f *Facebook) TestConnection(ctx context.Context) error {
	endpoint := fmt.Sprintf("https://graph.facebook.com/%s/%s", facebookAPIVersion, f.settings["page_id"])
	var out struct {
		ID string `json:"id"`
	}
	return f.client.RequestJSON(ctx, endpoint, apiclient.Options{
		Headers: map[string]string{"Authorization": "Bearer " + f.settings["access_token"]},
	}, true, &out)
}

// Fetch returns the page's recent posts as items.
func (f *Facebook) Fetch(ctx context.Context, _ *campaign.Campaign) ([]campaign.Item, error) {
	endpoint := fmt.Sprintf("https://graph.facebook.com/%s/%s/posts", facebookAPIVersion, f.settings["page_id"])
	query := url.Values{
		"fields": {"id,message,created_time,permalink_url,full_picture,attachments{type,url,title,description},from"},
	}

	var response struct {
		Data []facebookPost `json:"data"`
	}
	err := f.client.RequestJSON(ctx, endpoint, apiclient.Options{
		Headers: map[string]string{"Authorization": "Bearer " + f.settings["access_token"]},
		Query:   query,
	}, true, &response)
	if err != nil {
		return nil, errs.Wrap(errs.FetchError, err, "fetching Facebook posts")
	}

	items := make([]campaign.Item, 0, len(response.Data))
	for _, post := range response.Data {
		items = append(items, f.normalize(post))
	}
	return items, nil
}

func (f *Facebook) normalize(post facebookPost) campaign.Item {
	item := campaign.Item{
		Title:   facebookTitle(post),
		Content: facebookContent(post),
		Author:  post.From.Name,
		Date:    post.CreatedTime,
		URL:     post.PermalinkURL,
		Image:   post.FullPicture,
		Meta: map[string]string{
			"facebook_id": post.ID,
			"type":        "status",
		},
	}
	if len(post.Attachments.Data) > 0 && post.Attachments.Data[0].Type != "" {
		item.Meta["type"] = post.Attachments.Data[0].Type
	}
	if post.Shares.Count > 0 {
		item.Meta["shares"] = strconv.Itoa(post.Shares.Count)
	}
	return item
}

func facebookTitle(post facebookPost) string {
	if len(post.Attachments.Data) > 0 && post.Attachments.Data[0].Title != "" {
		return post.Attachments.Data[0].Title
	}
	if line := firstLine(post.Message); line != "" {
		return trimWords(line, 10)
	}
	if post.Message != "" {
		return trimWords(post.Message, 10)
	}
	return "Facebook Post"
}

func facebookContent(post facebookPost) string {
	content := ""
	if post.Message != "" {
		content += post.Message + "\n\n"
	}
	if len(post.Attachments.Data) > 0 {
		attachment := post.Attachments.Data[0]
		if attachment.Description != "" {
			content += attachment.Description + "\n\n"
		}
		if attachment.Type == "video_inline" && attachment.URL != "" {
			content += fmt.Sprintf(`<p><a href="%s" target="_blank">Watch Video</a></p>`, attachment.URL)
		}
	}
	return content
}
