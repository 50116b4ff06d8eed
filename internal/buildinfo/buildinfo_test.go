package buildinfo

import "testing"

func TestShortAndLong(t *testing.T) {
	v, c, d := Version, Commit, Date
	defer func() { Version, Commit, Date = v, c, d }()

	Version, Commit, Date = "dev", "unknown", "unknown"
	if got := Short(); got != "dev" {
		t.Fatalf("Short() = %q, want %q", got, "dev")
	}
	Commit = "abc123"
	if got := Short(); got != "abc123" {
		t.Fatalf("Short() = %q, want %q", got, "abc123")
	}
	Version, Date = "v0.2.0", "2026-10-19"
	if got := Short(); got != "v0.2.0" {
		t.Fatalf("Short() = %q, want %q", got, "v0.2.0")
	}
	if got, want := Long(), "v0.2.0 (abc123, 2026-10-19)"; got != want {
		t.Fatalf("Long() = %q, want %q", got, want)
	}
}
