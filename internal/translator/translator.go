// Package translator implements the translation providers.
package translator

import (
	"regexp"
	"strings"

	"socialpress/internal/apiclient"
	"socialpress/internal/provider"
)

// NewRegistry builds the translator registry with all default
// providers.
func NewRegistry(client *apiclient.Client) *provider.Registry[provider.Translator] {
	r := provider.NewRegistry[provider.Translator]()

	r.Register(provider.Descriptor[provider.Translator]{
		Type:        "yandex",
		Name:        "Yandex Translate",
		Description: "Translate content via the Yandex Cloud Translate API",
		Settings: []provider.SettingField{
			{Key: "api_key", Label: "API Key"},
			{Key: "folder_id", Label: "Folder ID"},
		},
		New: func(settings map[string]string) provider.Translator {
			return &Yandex{settings: settings, client: client}
		},
	})

	return r
}

const maxChunkLength = 1000

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
	sentRe  = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)
)

// cleanText strips markup and collapses whitespace before the text is
// sent to a translation API.
func cleanText(text string) string {
	text = tagRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// splitText breaks text into chunks of at most maxChunkLength,
// preferring sentence boundaries.
func splitText(text string) []string {
	if len(text) <= maxChunkLength {
		return []string{text}
	}

	sentences := splitSentences(text)
	var chunks []string
	current := ""
	for _, sentence := range sentences {
		candidate := strings.TrimSpace(current + " " + sentence)
		if len(candidate) > maxChunkLength && current != "" {
			chunks = append(chunks, current)
			current = sentence
		} else {
			current = candidate
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

func splitSentences(text string) []string {
	var sentences []string
	consumed := 0
	for _, loc := range sentRe.FindAllStringSubmatchIndex(text, -1) {
		sentences = append(sentences, strings.TrimSpace(text[loc[2]:loc[3]]))
		consumed = loc[1]
	}
	if rest := strings.TrimSpace(text[consumed:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}
