package campaign

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
)

// FilterType selects the matching rule of a filter.
type FilterType string

const (
	FilterKeyword FilterType = "keyword"
	FilterLength  FilterType = "length"
	FilterDate    FilterType = "date"
)

// Filter is a single item-acceptance rule. Length and date values
// carry their operator inline, e.g. ">500" or "<2023-01-01".
type Filter struct {
	Type  FilterType `json:"type"`
	Value string     `json:"value"`
}

var opValueRe = regexp.MustCompile(`([<>])\s*(.+)`)

// Matches reports whether the item satisfies this filter. Filters with
// values that cannot be parsed accept everything.
func (f Filter) Matches(item Item) bool {
	switch f.Type {
	case FilterKeyword:
		return matchesKeyword(item, f.Value)
	case FilterLength:
		return matchesLength(item, f.Value)
	case FilterDate:
		return matchesDate(item, f.Value)
	}
	return true
}

// ApplyFilters returns the items that satisfy every filter. Rejected
// items are dropped silently.
func ApplyFilters(items []Item, filters []Filter) []Item {
	if len(filters) == 0 {
		return items
	}
	var kept []Item
	for _, item := range items {
		if matchesAll(item, filters) {
			kept = append(kept, item)
		}
	}
	return kept
}

func matchesAll(item Item, filters []Filter) bool {
	for _, f := range filters {
		if !f.Matches(item) {
			return false
		}
	}
	return true
}

func matchesKeyword(item Item, keyword string) bool {
	keyword = strings.ToLower(keyword)
	return strings.Contains(strings.ToLower(item.Title), keyword) ||
		strings.Contains(strings.ToLower(item.Content), keyword)
}

func matchesLength(item Item, value string) bool {
	m := opValueRe.FindStringSubmatch(value)
	if m == nil {
		return true
	}
	threshold, err := strconv.Atoi(strings.TrimSpace(m[2]))
	if err != nil {
		return true
	}
	length := len(stripTags(item.Content))
	if m[1] == ">" {
		return length > threshold
	}
	return length < threshold
}

func matchesDate(item Item, value string) bool {
	m := opValueRe.FindStringSubmatch(value)
	if m == nil {
		return true
	}
	threshold, err := dateparse.ParseAny(strings.TrimSpace(m[2]))
	if err != nil {
		return true
	}
	itemDate, err := dateparse.ParseAny(item.Date)
	if err != nil {
		return false
	}
	if m[1] == ">" {
		return itemDate.After(threshold)
	}
	return itemDate.Before(threshold)
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}
