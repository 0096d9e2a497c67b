// Package fetcher implements the content source providers. Each
// provider normalizes the raw API payload of one platform into items.
package fetcher

import (
	"strings"

	"socialpress/internal/apiclient"
	"socialpress/internal/logging"
	"socialpress/internal/provider"
)

// NewRegistry builds the fetcher registry with all default providers.
// The API client and logger are bound into each factory.
func NewRegistry(client *apiclient.Client, logger *logging.Logger) *provider.Registry[provider.Fetcher] {
	r := provider.NewRegistry[provider.Fetcher]()

	r.Register(provider.Descriptor[provider.Fetcher]{
		Type:        "facebook",
		Name:        "Facebook",
		Description: "Fetch posts from Facebook pages",
		Settings: []provider.SettingField{
			{Key: "app_id", Label: "App ID"},
			{Key: "app_secret", Label: "App Secret"},
			{Key: "page_id", Label: "Page ID"},
			{Key: "access_token", Label: "Access Token"},
		},
		New: func(settings map[string]string) provider.Fetcher {
			return &Facebook{settings: settings, client: client}
		},
	})

	r.Register(provider.Descriptor[provider.Fetcher]{
		Type:        "twitter",
		Name:        "Twitter",
		Description: "Fetch tweets from Twitter accounts",
		Settings: []provider.SettingField{
			{Key: "api_key", Label: "API Key"},
			{Key: "api_secret", Label: "API Secret"},
			{Key: "bearer_token", Label: "Bearer Token"},
			{Key: "username", Label: "Username"},
		},
		New: func(settings map[string]string) provider.Fetcher {
			return &Twitter{settings: settings, client: client}
		},
	})

	r.Register(provider.Descriptor[provider.Fetcher]{
		Type:        "youtube",
		Name:        "YouTube",
		Description: "Fetch videos from YouTube channels",
		Settings: []provider.SettingField{
			{Key: "api_key", Label: "API Key"},
			{Key: "channel_id", Label: "Channel ID"},
			{Key: "max_results", Label: "Max Results"},
		},
		New: func(settings map[string]string) provider.Fetcher {
			return &YouTube{settings: settings, client: client}
		},
	})

	r.Register(provider.Descriptor[provider.Fetcher]{
		Type:        "instagram",
		Name:        "Instagram",
		Description: "Fetch media from Instagram business accounts",
		Settings: []provider.SettingField{
			{Key: "access_token", Label: "Access Token"},
			{Key: "user_id", Label: "Business Account ID"},
		},
		New: func(settings map[string]string) provider.Fetcher {
			return &Instagram{settings: settings, client: client}
		},
	})

	r.Register(provider.Descriptor[provider.Fetcher]{
		Type:        "tiktok",
		Name:        "TikTok",
		Description: "Fetch videos from TikTok accounts",
		Settings: []provider.SettingField{
			{Key: "client_key", Label: "Client Key"},
			{Key: "client_secret", Label: "Client Secret"},
			{Key: "access_token", Label: "Access Token"},
			{Key: "username", Label: "Username"},
		},
		New: func(settings map[string]string) provider.Fetcher {
			return &TikTok{settings: settings, client: client}
		},
	})

	r.Register(provider.Descriptor[provider.Fetcher]{
		Type:        "rss",
		Name:        "RSS",
		Description: "Fetch entries from RSS and Atom feeds",
		Settings: []provider.SettingField{
			{Key: "feed_url", Label: "Feed URL"},
		},
		New: func(settings map[string]string) provider.Fetcher {
			return &RSS{settings: settings, logger: logger}
		},
	})

	return r
}

// trimWords returns the first n words of s, appending an ellipsis when
// the text was longer.
func trimWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "..."
}

// firstLine returns the first non-empty line of s, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
