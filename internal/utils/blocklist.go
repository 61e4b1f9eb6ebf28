package utils

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// Blocklist holds title terms that keep a release off the wall
type Blocklist struct {
	terms []string
}

// LoadBlocklist loads one term per line from path. Blank lines and lines
// starting with # are ignored; a missing file yields an empty list.
func LoadBlocklist(fs afero.Fs, path string) (*Blocklist, error) {
	if path == "" {
		return &Blocklist{}, nil
	}
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return &Blocklist{}, nil
	}
	if err != nil {
		return nil, err
	}

	var terms []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		term := strings.TrimSpace(scanner.Text())
		if term != "" && !strings.HasPrefix(term, "#") {
			terms = append(terms, FoldTitle(term))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &Blocklist{terms: terms}, nil
}

// Len returns the number of terms
func (b *Blocklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.terms)
}

// Match reports whether title contains a term, ignoring case and accents.
// Returns (matched, term).
func (b *Blocklist) Match(title string) (bool, string) {
	if b == nil {
		return false, ""
	}
	folded := FoldTitle(title)
	for _, term := range b.terms {
		if strings.Contains(folded, term) {
			return true, term
		}
	}
	return false, ""
}
