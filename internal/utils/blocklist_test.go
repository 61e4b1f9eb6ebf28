package utils

import (
	"testing"

	"github.com/spf13/afero"
)

func TestBlocklist(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "# concerts and events\nLive in Concert\n\n  Théâtre  \n"
	if err := afero.WriteFile(fs, "/blocklist.txt", []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	blocklist, err := LoadBlocklist(fs, "/blocklist.txt")
	if err != nil {
		t.Fatalf("LoadBlocklist: %v", err)
	}
	if blocklist.Len() != 2 {
		t.Fatalf("expected 2 terms, got %d", blocklist.Len())
	}

	tests := []struct {
		title string
		want  bool
	}{
		{"The Band: LIVE IN CONCERT", true},
		{"National Theatre at Home", true},
		{"A Regular Film", false},
	}
	for _, tt := range tests {
		if got, _ := blocklist.Match(tt.title); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestBlocklistMissingFile(t *testing.T) {
	blocklist, err := LoadBlocklist(afero.NewMemMapFs(), "/missing.txt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if matched, _ := blocklist.Match("anything"); matched {
		t.Error("empty blocklist should not match")
	}
}
