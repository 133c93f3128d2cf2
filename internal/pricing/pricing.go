// Package pricing answers price questions from the clinic's price list.
package pricing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Source returns price-list text, narrowed to treatment when it is set.
type Source interface {
	Prices(ctx context.Context, treatment string) (string, error)
}

// Filter keeps the lines mentioning treatment. The whole text is returned when
// treatment is empty or nothing mentions it.
func Filter(text, treatment string) string {
	text = strings.TrimSpace(text)
	treatment = strings.ToLower(strings.TrimSpace(treatment))
	if treatment == "" {
		return text
	}
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(strings.ToLower(line), treatment) {
			kept = append(kept, strings.TrimSpace(line))
		}
	}
	if len(kept) == 0 {
		return text
	}
	return strings.Join(kept, "\n")
}

// Static serves a fixed price list keyed by treatment name.
type Static map[string]string

func (s Static) Prices(_ context.Context, treatment string) (string, error) {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %s", name, s[name]))
	}
	return Filter(strings.Join(lines, "\n"), treatment), nil
}

// DefaultPrices is the list served when no price document is configured.
func DefaultPrices() Static {
	return Static{
		"Cleaning":           "$90",
		"Check-up":           "$60",
		"Filling":            "from $120 per tooth",
		"Braces Maintenance": "$75",
		"Root Canal":         "from $650",
		"Extraction":         "from $150",
		"Whitening":          "$300",
		"Consultation":       "$50",
	}
}

type cacheEntry struct {
	text      string
	fetchedAt time.Time
}

// Cached memoizes another source for TTL per treatment.
type Cached struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCached(src Source, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cached{src: src, ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

func (c *Cached) Prices(ctx context.Context, treatment string) (string, error) {
	key := strings.ToLower(treatment)
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.text, nil
	}

	text, err := c.src.Prices(ctx, treatment)
	if err != nil {
		if ok {
			// serve the stale copy rather than nothing
			return e.text, nil
		}
		return "", err
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{text: text, fetchedAt: c.now()}
	c.mu.Unlock()
	return text, nil
}
