// Package potd implements the caller side of the two external
// collaborators spec §6.4 declares out of scope: the featured-images list
// (a static file) and the picture-of-the-day fetcher (a child process).
package potd

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// FeaturedList is an immutable-after-load set of candidate image URLs,
// loaded once at startup from a newline-delimited file. No locking is
// needed once loaded, per spec §5 ("immutable after load; no locking").
type FeaturedList struct {
	urls []string
}

// LoadFeaturedList reads path, one URL per line, skipping blank lines.
func LoadFeaturedList(path string) (*FeaturedList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("potd: open featured list %q: %w", path, err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("potd: read featured list %q: %w", path, err)
	}

	return &FeaturedList{urls: urls}, nil
}

// Random returns a uniformly random entry. ok is false if the list is
// empty.
func (l *FeaturedList) Random() (url string, ok bool) {
	if l == nil || len(l.urls) == 0 {
		return "", false
	}
	return l.urls[rand.Intn(len(l.urls))], true
}

// Len returns the number of loaded URLs.
func (l *FeaturedList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.urls)
}
