package ics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jordivila/parroquia-assistant/internal/core/domain"
)

type Config struct {
	FeedURL string
	// CacheTTL bounds how stale the feed copy may get. The parish calendar
	// changes a few times a week; refetching per question is wasteful.
	CacheTTL time.Duration
	Timeout  time.Duration
	Clock    func() time.Time
}

func (c Config) withDefaults() Config {
	out := c
	if out.CacheTTL <= 0 {
		out.CacheTTL = 5 * time.Minute
	}
	if out.Timeout <= 0 {
		out.Timeout = 15 * time.Second
	}
	if out.Clock == nil {
		out.Clock = time.Now
	}
	return out
}

// Client reads the parish events feed (public ICS export) and serves
// window-filtered events from a short-lived in-process copy.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu        sync.Mutex
	events    []domain.Event
	fetchedAt time.Time
}

func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Events returns the events overlapping [from, to), sorted by start time.
func (c *Client) Events(ctx context.Context, from, to time.Time) ([]domain.Event, error) {
	all, err := c.feed(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Event, 0, len(all))
	for _, ev := range all {
		end := ev.End
		if end.IsZero() {
			end = ev.Start
		}
		if ev.Start.Before(to) && !end.Before(from) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (c *Client) feed(ctx context.Context) ([]domain.Event, error) {
	c.mu.Lock()
	if c.events != nil && c.cfg.Clock().Sub(c.fetchedAt) < c.cfg.CacheTTL {
		cached := c.events
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "calendar_fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, domain.WrapError(domain.ErrTemporary, "calendar_fetch",
			fmt.Errorf("feed status: %s", resp.Status))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "calendar_fetch", err)
	}

	events := parseICS(string(raw))

	c.mu.Lock()
	c.events = events
	c.fetchedAt = c.cfg.Clock()
	c.mu.Unlock()
	return events, nil
}

// parseICS extracts VEVENT blocks. Only the properties the assistant can
// talk about are read; everything else in the feed is ignored.
func parseICS(raw string) []domain.Event {
	lines := unfold(raw)

	var events []domain.Event
	var current *domain.Event
	for _, line := range lines {
		switch {
		case line == "BEGIN:VEVENT":
			current = &domain.Event{}
		case line == "END:VEVENT":
			if current != nil && current.Title != "" && !current.Start.IsZero() {
				events = append(events, *current)
			}
			current = nil
		case current != nil:
			name, params, value := splitProperty(line)
			switch name {
			case "UID":
				current.ID = value
			case "SUMMARY":
				current.Title = unescape(value)
			case "LOCATION":
				current.Location = unescape(value)
			case "DESCRIPTION":
				current.Description = unescape(value)
			case "DTSTART":
				t, allDay, ok := parseICSTime(value, params)
				if ok {
					current.Start = t
					current.AllDay = allDay
				}
			case "DTEND":
				if t, _, ok := parseICSTime(value, params); ok {
					current.End = t
				}
			}
		}
	}
	return events
}

// unfold joins continuation lines (RFC 5545 folds long lines with a leading
// space or tab).
func unfold(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if len(out) > 0 && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			out[len(out)-1] += strings.TrimLeft(line, " \t")
			continue
		}
		out = append(out, strings.TrimRight(line, "\r"))
	}
	return out
}

func splitProperty(line string) (name, params, value string) {
	colon := strings.Index(line, ":")
	if colon < 0 {
		return line, "", ""
	}
	left, value := line[:colon], line[colon+1:]
	if semi := strings.Index(left, ";"); semi >= 0 {
		return left[:semi], left[semi+1:], value
	}
	return left, "", value
}

func parseICSTime(value, params string) (t time.Time, allDay bool, ok bool) {
	if strings.Contains(params, "VALUE=DATE") || len(value) == 8 {
		t, err := time.ParseInLocation("20060102", value, time.Local)
		return t, true, err == nil
	}
	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse("20060102T150405Z", value)
		return t, false, err == nil
	}
	t, err := time.ParseInLocation("20060102T150405", value, time.Local)
	return t, false, err == nil
}

func unescape(value string) string {
	replacer := strings.NewReplacer(`\n`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return replacer.Replace(value)
}
