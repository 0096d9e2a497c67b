package engine

import (
	"strings"

	"socialpress/internal/campaign"
)

// DefaultTemplate is used when a campaign does not configure one.
const DefaultTemplate = "{content}"

// Render substitutes the item's fields into the template. Replacement
// is a single pass, so tokens appearing inside item content are not
// expanded again. Unknown tokens pass through unchanged.
func Render(template string, item campaign.Item) string {
	if template == "" {
		template = DefaultTemplate
	}
	replacer := strings.NewReplacer(
		"{title}", item.Title,
		"{content}", item.Content,
		"{author}", item.Author,
		"{date}", item.Date,
		"{url}", item.URL,
		"{image}", item.Image,
	)
	return replacer.Replace(template)
}
