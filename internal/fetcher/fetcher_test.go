package fetcher

import (
	"testing"

	"socialpress/internal/apiclient"
	"socialpress/internal/errs"
	"socialpress/internal/logging"
)

func TestTrimWords(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"one two three", 5, "one two three"},
		{"one two three four five six", 3, "one two three..."},
		{"  spaced   out  ", 2, "spaced out"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := trimWords(tt.in, tt.n); got != tt.want {
			t.Errorf("trimWords(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct{ in, want string }{
		{"first\nsecond", "first"},
		{"\n\n  padded line \nmore", "padded line"},
		{"", ""},
		{"\n\n", ""},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in); got != tt.want {
			t.Errorf("firstLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistryKnowsAllProviders(t *testing.T) {
	r := NewRegistry(apiclient.New(0, 0, nil), logging.NewNop())

	for _, typ := range []string{"facebook", "twitter", "youtube", "instagram", "tiktok", "rss"} {
		if _, err := r.Descriptor(typ); err != nil {
			t.Errorf("expected %s to be registered: %v", typ, err)
		}
	}
	if _, err := r.Descriptor("myspace"); !errs.IsKind(err, errs.ProviderNotFound) {
		t.Errorf("expected provider_not_found, got %v", err)
	}
}

func TestRegistrySettingsSchemas(t *testing.T) {
	r := NewRegistry(apiclient.New(0, 0, nil), logging.NewNop())

	err := r.Validate("rss", map[string]string{})
	want := "missing_settings: missing required settings: Feed URL"
	if err == nil || err.Error() != want {
		t.Errorf("unexpected validation result: %v", err)
	}

	err = r.Validate("facebook", map[string]string{"page_id": "1"})
	if !errs.IsKind(err, errs.MissingSettings) {
		t.Fatalf("expected missing_settings, got %v", err)
	}

	if err := r.Validate("youtube", map[string]string{
		"api_key": "k", "channel_id": "c", "max_results": "10",
	}); err != nil {
		t.Errorf("complete settings should validate: %v", err)
	}
}
