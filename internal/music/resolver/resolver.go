// Package resolver turns a user query into a playable media source using the
// yt-dlp subprocess. URLs are interpreted directly; everything else, and any
// URL that fails direct interpretation, goes through a first-result search.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MediaSource is the result of a resolution: a playable URL plus optional
// display metadata. It is consumed once to start playback.
type MediaSource struct {
	URL      string
	Title    string
	Duration time.Duration
}

// ResolutionError reports that neither direct interpretation nor search
// produced a usable source for a query.
type ResolutionError struct {
	Query string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Query, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// RunFunc executes a subprocess and returns its stdout. Injected so tests
// can fake yt-dlp.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Resolver resolves queries via yt-dlp.
type Resolver struct {
	run RunFunc
	log zerolog.Logger
}

func New(log zerolog.Logger) *Resolver {
	return &Resolver{run: defaultRun, log: log}
}

// NewWithRunner creates a Resolver with a custom subprocess runner.
func NewWithRunner(run RunFunc, log zerolog.Logger) *Resolver {
	return &Resolver{run: run, log: log}
}

// Resolve attempts direct interpretation first, then a first-result search.
// The order is fixed: direct interpretation is cheaper and more precise.
func (r *Resolver) Resolve(ctx context.Context, query string) (*MediaSource, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ResolutionError{Query: query, Err: errors.New("empty query")}
	}

	if isURL(query) {
		src, err := r.extract(ctx, query)
		if err == nil {
			return src, nil
		}
		r.log.Debug().Err(err).Str("query", query).Msg("direct interpretation failed, falling back to search")
	}

	src, err := r.extract(ctx, "ytsearch1:"+query)
	if err != nil {
		return nil, &ResolutionError{Query: query, Err: err}
	}
	return src, nil
}

// metadata is the subset of yt-dlp -j output the bot cares about.
type metadata struct {
	Title      string  `json:"title"`
	WebpageURL string  `json:"webpage_url"`
	URL        string  `json:"url"`
	Duration   float64 `json:"duration"`
	Formats    []struct {
		URL string `json:"url"`
	} `json:"formats"`
}

func (r *Resolver) extract(ctx context.Context, target string) (*MediaSource, error) {
	out, err := r.run(ctx, "yt-dlp", "-j", "--no-playlist", target)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata error: %w", err)
	}

	var info metadata
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("yt-dlp json unmarshal error: %w", err)
	}

	link := strings.TrimSpace(info.WebpageURL)
	if link == "" {
		link = strings.TrimSpace(info.URL)
	}
	if link == "" && len(info.Formats) > 0 {
		link = strings.TrimSpace(info.Formats[0].URL)
	}
	if link == "" {
		return nil, errors.New("no playable URL in yt-dlp metadata")
	}

	return &MediaSource{
		URL:      link,
		Title:    info.Title,
		Duration: time.Duration(info.Duration * float64(time.Second)),
	}, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
