// Package provider defines the pluggable capability interfaces and the
// registry that maps provider type names to factories.
package provider

import (
	"context"

	"socialpress/internal/campaign"
)

// Fetcher produces normalized items from one external content source.
type Fetcher interface {
	// Fetch returns the current batch of items for the campaign.
	Fetch(ctx context.Context, c *campaign.Campaign) ([]campaign.Item, error)
	// TestConnection performs a cheap real API call to verify the
	// configured credentials.
	TestConnection(ctx context.Context) error
}

// Translator converts text between languages via a provider API.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
	TestConnection(ctx context.Context) error
}

// SettingField is one entry of a provider's required-settings schema.
// Order is significant: validation errors report labels in schema order.
type SettingField struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Descriptor describes a registered provider type and how to build it.
type Descriptor[T any] struct {
	Type        string
	Name        string
	Description string
	Settings    []SettingField
	New         func(settings map[string]string) T
}
