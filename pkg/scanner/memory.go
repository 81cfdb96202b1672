package scanner

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// EICARSignature is the standard antivirus test string. Content containing
// it is always reported by MemoryEngine.
const EICARSignature = `X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`

// MemoryEngine is an in-process Engine used by tests and local development.
// It matches content against registered byte patterns plus the EICAR test
// string.
type MemoryEngine struct {
	mu       sync.RWMutex
	patterns map[string][]byte
	delay    time.Duration
	down     bool
}

// NewMemoryEngine creates an engine that detects EICAR out of the box.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		patterns: map[string][]byte{
			"Eicar-Test-Signature": []byte(EICARSignature),
		},
	}
}

// AddSignature registers a detection pattern under the given name.
func (e *MemoryEngine) AddSignature(name string, pattern []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.patterns[name] = bytes.Clone(pattern)
}

// SetDelay makes every scan sleep, for exercising timeout paths.
func (e *MemoryEngine) SetDelay(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = d
}

// SetDown toggles simulated engine unavailability.
func (e *MemoryEngine) SetDown(down bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.down = down
}

func (e *MemoryEngine) StreamScan(ctx context.Context, content []byte) (string, error) {
	e.mu.RLock()
	delay, down := e.delay, e.down
	e.mu.RUnlock()

	if down {
		return "", ErrEngineUnavailable
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	for name, pattern := range e.patterns {
		if bytes.Contains(content, pattern) {
			return name, nil
		}
	}
	return "", nil
}

func (e *MemoryEngine) Ping(ctx context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.down
}

func (e *MemoryEngine) Version(ctx context.Context) (string, error) {
	if e.down {
		return "", ErrEngineUnavailable
	}
	return "memory-engine/1.0", nil
}
