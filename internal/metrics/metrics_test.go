package metrics

import "testing"

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/", "/"},
		{"/epochs", "/epochs"},
		{"/now", "/now"},
		{"/comment", "/comment"},
		{"/header", "/header"},
		{"/metadata", "/metadata"},
		{"/track", "/track"},
		{"/passes", "/passes"},
		{"/delete-data", "/delete-data"},
		{"/post-data", "/post-data"},
		{"/help", "/help"},
		{"/healthz", "/healthz"},
		{"/metrics", "/metrics"},

		// Parameterized epoch routes collapse to one label each.
		{"/epochs/2023-058T13:20:00.000Z", "/epochs/{epoch}"},
		{"/epochs/2024-100T00:00:00.000Z", "/epochs/{epoch}"},
		{"/epochs/2023-058T13:20:00.000Z/speed", "/epochs/{epoch}/speed"},
		{"/epochs/2023-058T13:20:00.000Z/location", "/epochs/{epoch}/location"},
		{"/epochs/garbage", "/epochs/{epoch}"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/favicon.ico", "other"},
		{"/epochs/x/y/z", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// 100 distinct epoch strings must produce exactly one path label.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		label := normalizeRoute("/epochs/2023-0" + string(rune('0'+i%10)) + string(rune('0'+i/10)) + "T00:00:00.000Z")
		seen[label] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for parameterized paths, got %d: %v", len(seen), seen)
	}
}
