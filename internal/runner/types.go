package runner

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Mode selects how the dispatch controller schedules calls.
type Mode string

const (
	ModeParallel   Mode = "parallel-synchronized"
	ModeSequential Mode = "sequential-throttled"
)

const (
	DefaultCallCount  = 100
	DefaultTimeoutSec = 1000
	DefaultMaxConns   = 1000
)

// ErrInvalidConfig wraps every validation failure of Config.
var ErrInvalidConfig = errors.New("invalid run configuration")

// getBody is the request body that turns a call into a GET.
var getBody = []byte("{}")

// Config is built once from CLI input and never mutated afterwards.
type Config struct {
	Count             int           `json:"count" yaml:"count"`
	URL               string        `json:"url" yaml:"url"`
	Body              []byte        `json:"body,omitempty" yaml:"body,omitempty"`
	Mode              Mode          `json:"mode" yaml:"mode"`
	DelayBetweenCalls time.Duration `json:"delay_between_calls" yaml:"delay_between_calls"`

	WriteResponse bool   `json:"write_response" yaml:"write_response"`
	WriteRaw      bool   `json:"write_raw" yaml:"write_raw"`
	OutDir        string `json:"out_dir,omitempty" yaml:"out_dir,omitempty"`

	NoCountdown   bool `json:"no_countdown" yaml:"no_countdown"`
	DumpFailedIDs bool `json:"dump_failed_ids" yaml:"dump_failed_ids"`

	TimeoutSec int `json:"timeout_sec" yaml:"timeout_sec"`
	MaxConns   int `json:"max_conns" yaml:"max_conns"`

	// Insecure skips TLS certificate verification
	Insecure bool `json:"insecure" yaml:"insecure"`
}

// IsGet reports whether calls go out as GET. Only the empty object selects GET.
func (c Config) IsGet() bool {
	return bytes.Equal(bytes.TrimSpace(c.Body), getBody)
}

// Method returns the HTTP method every call of the run uses.
func (c Config) Method() string {
	if c.IsGet() {
		return "GET"
	}
	return "POST"
}

// Validate checks the configuration before any call is made.
func (c Config) Validate() error {
	if c.Count <= 0 {
		return fmt.Errorf("%w: call count must be greater than 0, got %d", ErrInvalidConfig, c.Count)
	}
	if c.URL == "" {
		return fmt.Errorf("%w: target url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: target url: %v", ErrInvalidConfig, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: target url must be absolute http(s), got %q", ErrInvalidConfig, c.URL)
	}
	if c.DelayBetweenCalls < 0 {
		return fmt.Errorf("%w: delay between calls cannot be negative", ErrInvalidConfig)
	}
	switch c.Mode {
	case ModeParallel, ModeSequential:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	if c.TimeoutSec < 0 {
		return fmt.Errorf("%w: timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// CallRecord describes one dispatched call. It only lives for the duration
// of the call and the hooks that observe it.
type CallRecord struct {
	Slot          int
	CorrelationID string
	URL           string
	Method        string

	LatencyMs float64
	Status    int
	Class     Classification

	ResponsePath string

	DispatchedAt time.Time
	CompletedAt  time.Time

	Err error
}

// Responded reports whether a status line was received.
func (r CallRecord) Responded() bool {
	return r.Status != 0
}

// Glyph is the console token echoed when the call completes.
func (r CallRecord) Glyph() string {
	if !r.Responded() {
		return GlyphTransportError
	}
	return r.Class.Glyph()
}
