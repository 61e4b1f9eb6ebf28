package utils

import "testing"

func TestExtractYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"2024-03-01", 2024},
		{"Released (1999)", 1999},
		{"no year here", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := ExtractYear(tt.in); got != tt.want {
			t.Errorf("ExtractYear(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFoldTitle(t *testing.T) {
	if got := FoldTitle("  Amélie   Poulain "); got != "amelie poulain" {
		t.Errorf("unexpected fold: %q", got)
	}
	if FoldTitle("Pokémon") != FoldTitle("POKEMON") {
		t.Error("expected accent-insensitive match")
	}
}
