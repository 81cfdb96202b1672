package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultScanTimeout bounds a single engine round-trip.
const DefaultScanTimeout = 30 * time.Second

// Scanner normalizes engine results and applies scan policy.
type Scanner struct {
	engine  Engine
	policy  Policy
	timeout time.Duration
	pending *resultRegistry
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPolicy replaces the default policy.
func WithPolicy(p Policy) Option {
	return func(s *Scanner) { s.policy = p }
}

// WithTimeout bounds each engine call.
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Scanner around the given engine.
func New(engine Engine, opts ...Option) *Scanner {
	if engine == nil {
		panic("scanner: engine cannot be nil")
	}
	s := &Scanner{
		engine:  engine,
		policy:  DefaultPolicy(),
		timeout: DefaultScanTimeout,
		pending: newResultRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the active policy.
func (s *Scanner) Policy() Policy {
	return s.policy
}

// Scan submits content to the engine and returns a normalized result.
// It never returns a Go error: timeouts and engine failures are reported
// as StatusError. A timeout is inconclusive, never infected.
func (s *Scanner) Scan(ctx context.Context, content []byte, filename, category string) Result {
	res := Result{
		ID:        uuid.New().String(),
		ScannedAt: time.Now(),
	}

	if s.policy.ShouldSkip(filename, category) {
		res.Status = StatusSkipped
		return res
	}

	if int64(len(content)) > s.policy.MaxScanBytes {
		res.Status = StatusError
		res.Error = fmt.Sprintf("content size %d exceeds scan limit %d", len(content), s.policy.MaxScanBytes)
		return res
	}

	started := time.Now()
	scanCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	signature, err := s.engine.StreamScan(scanCtx, content)
	res.Duration = time.Since(started)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		res.Status = StatusError
		res.Error = ErrScanTimeout.Error()
	case err != nil:
		res.Status = StatusError
		res.Error = err.Error()
	case signature == "":
		res.Status = StatusClean
	default:
		res.Status = StatusInfected
		res.ThreatName = signature
		res.ThreatLevel = classifyThreat(signature)
	}
	return res
}

// classifyThreat maps a signature name to a severity by keyword family.
func classifyThreat(signature string) ThreatLevel {
	sig := strings.ToLower(signature)

	switch {
	case containsAny(sig, "trojan", "ransom", "backdoor"):
		return ThreatLevelCritical
	case containsAny(sig, "virus", "worm", "rootkit"):
		return ThreatLevelHigh
	case containsAny(sig, "adware", "spyware", "pup."):
		return ThreatLevelMedium
	case containsAny(sig, "eicar", "test-signature", "test.file"):
		return ThreatLevelLow
	default:
		return ThreatLevelMedium
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
