package scanner

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"
)

// ClamdEngine speaks the clamd TCP protocol using the newline-framed
// command form (nINSTREAM, nPING, nVERSION).
type ClamdEngine struct {
	addr        string
	dialTimeout time.Duration
	chunkSize   int
}

// ClamdOption configures a ClamdEngine.
type ClamdOption func(*ClamdEngine)

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(d time.Duration) ClamdOption {
	return func(e *ClamdEngine) {
		if d > 0 {
			e.dialTimeout = d
		}
	}
}

// WithChunkSize sets the INSTREAM chunk size in bytes.
func WithChunkSize(n int) ClamdOption {
	return func(e *ClamdEngine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// NewClamdEngine creates an engine that connects to clamd at addr
// (host:port) for each scan.
func NewClamdEngine(addr string, opts ...ClamdOption) *ClamdEngine {
	e := &ClamdEngine{
		addr:        addr,
		dialTimeout: 5 * time.Second,
		chunkSize:   64 << 10,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *ClamdEngine) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: e.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", e.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return conn, nil
}

// StreamScan sends content via INSTREAM and parses the verdict line.
// Clamd replies "stream: OK" for clean content and
// "stream: <signature> FOUND" on detection.
func (e *ClamdEngine) StreamScan(ctx context.Context, content []byte) (string, error) {
	conn, err := e.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("nINSTREAM\n")); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	// Each chunk is a big-endian uint32 length prefix followed by data.
	// A zero-length chunk terminates the stream.
	var size [4]byte
	for off := 0; off < len(content); off += e.chunkSize {
		end := min(off+e.chunkSize, len(content))
		binary.BigEndian.PutUint32(size[:], uint32(end-off))
		if _, err := conn.Write(size[:]); err != nil {
			return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
		if _, err := conn.Write(content[off:end]); err != nil {
			return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
	}
	binary.BigEndian.PutUint32(size[:], 0)
	if _, err := conn.Write(size[:]); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return parseClamdVerdict(strings.TrimSpace(line))
}

func parseClamdVerdict(line string) (string, error) {
	if _, rest, ok := strings.Cut(line, ": "); ok {
		line = rest
	}
	switch {
	case line == "OK":
		return "", nil
	case strings.HasSuffix(line, " FOUND"):
		return strings.TrimSuffix(line, " FOUND"), nil
	default:
		return "", fmt.Errorf("%w: unexpected reply %q", ErrEngineUnavailable, line)
	}
}

// Ping reports whether clamd responds to a PING command.
func (e *ClamdEngine) Ping(ctx context.Context) bool {
	conn, err := e.dial(ctx)
	if err != nil {
		return false
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("nPING\n")); err != nil {
		return false
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && strings.TrimSpace(line) == "PONG"
}

// Version returns the clamd version string.
func (e *ClamdEngine) Version(ctx context.Context) (string, error) {
	conn, err := e.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("nVERSION\n")); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return strings.TrimSpace(line), nil
}
