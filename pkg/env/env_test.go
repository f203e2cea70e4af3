package env

import "testing"

func TestGetFallsBack(t *testing.T) {
	t.Setenv("CAREON_TEST_VALUE", "  ")
	if got := Get("CAREON_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("CAREON_TEST_VALUE", "console")
	if got := Get("CAREON_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
}
