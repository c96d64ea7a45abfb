// Package config builds the immutable run configuration from the positional
// command line:
//
//	pagewatch <url> <snapshot-id>
//	pagewatch <url> <selector> <snapshot-id> [sink-url...]
//
// An empty selector argument means the whole page is compared.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baxromumarov/pagewatch/internal/content"
	"github.com/baxromumarov/pagewatch/internal/store"
	"github.com/baxromumarov/pagewatch/internal/urlutil"
)

const (
	DefaultSnapshotDir   = "snapshots"
	DefaultUserAgent     = "pagewatch/1.0"
	DefaultFetchTimeout  = 15 * time.Second
	DefaultNotifyTimeout = 10 * time.Second
	DefaultMaxPageBytes  = 64 << 20
)

var ErrUsage = errors.New("usage error")

// Target identifies what is being watched.
type Target struct {
	URL        string
	Selector   string
	SnapshotID string
}

type Config struct {
	Target        Target
	Sinks         []string
	SnapshotDir   string
	UserAgent     string
	FetchTimeout  time.Duration
	NotifyTimeout time.Duration
	MaxPageBytes  int64
}

// FromArgs validates the positional arguments. Every returned error wraps
// ErrUsage.
func FromArgs(args []string) (Config, error) {
	cfg := Config{
		SnapshotDir:   DefaultSnapshotDir,
		UserAgent:     DefaultUserAgent,
		FetchTimeout:  DefaultFetchTimeout,
		NotifyTimeout: DefaultNotifyTimeout,
		MaxPageBytes:  DefaultMaxPageBytes,
	}

	var rawURL, selector, id string
	var sinks []string
	switch len(args) {
	case 0, 1:
		return cfg, fmt.Errorf("%w: expected at least <url> and <snapshot-id>, got %d argument(s)", ErrUsage, len(args))
	case 2:
		rawURL, id = args[0], args[1]
	default:
		rawURL, selector, id = args[0], args[1], args[2]
		sinks = args[3:]
	}

	var problems []string

	target, _, err := urlutil.Normalize(rawURL)
	if err != nil {
		problems = append(problems, fmt.Sprintf("url: %v", err))
	}
	if err := content.ValidateSelector(selector); err != nil {
		problems = append(problems, fmt.Sprintf("selector: %v", err))
	}
	if err := store.ValidateID(id); err != nil {
		problems = append(problems, fmt.Sprintf("snapshot-id: %v", err))
	}
	for i, raw := range sinks {
		sink, _, err := urlutil.Normalize(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("sink %d: %v", i+1, err))
			continue
		}
		cfg.Sinks = append(cfg.Sinks, sink)
	}

	if len(problems) > 0 {
		return cfg, fmt.Errorf("%w: %s", ErrUsage, strings.Join(problems, "; "))
	}

	cfg.Target = Target{
		URL:        target,
		Selector:   strings.TrimSpace(selector),
		SnapshotID: id,
	}
	return cfg, nil
}
