package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// UploadMultipart accepts a chunk sequence plus a declared total size. Quota
// is validated before any bytes are accepted. Progress reports are lossy and
// at-least-once; the result channel carries exactly one terminal
// UploadResult and is then closed. Cancellation between chunks moves the
// session to cancelled without persisting anything.
func (s *Service) UploadMultipart(ctx context.Context, tenantID, ownerID, filename string, totalBytes int64, chunks <-chan []byte, opts UploadOptions) (<-chan Progress, <-chan UploadResult) {
	progressCh := make(chan Progress, 8)
	resultCh := make(chan UploadResult, 1)

	sess := newSession(totalBytes)
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	go func() {
		defer close(progressCh)
		defer close(resultCh)

		finishErr := func(err error) {
			if errors.Is(err, ErrCancelled) {
				sess.cancel(ctx)
				resultCh <- UploadResult{Status: StatusCancelled, Warnings: []string{err.Error()}}
				return
			}
			sess.fail(ctx, err)
			resultCh <- UploadResult{Status: StatusFailed, Warnings: []string{err.Error()}}
		}

		// Quota gate before accepting any bytes. A measurement outage fails
		// open inside CheckQuota.
		if !s.deps.Tenants.CheckQuota(ctx, tenantID, totalBytes) {
			finishErr(fmt.Errorf("%w: %d declared bytes", ErrQuotaExceeded, totalBytes))
			return
		}

		_ = sess.fire(ctx, eventStart)

		var buf bytes.Buffer
		if totalBytes > 0 {
			buf.Grow(int(totalBytes))
		}

	receive:
		for {
			select {
			case <-ctx.Done():
				finishErr(fmt.Errorf("%w: %v", ErrCancelled, ctx.Err()))
				return
			case chunk, ok := <-chunks:
				if !ok {
					break receive
				}
				if err := sess.addBytes(int64(len(chunk))); err != nil {
					finishErr(err)
					return
				}
				buf.Write(chunk)

				// Lossy progress: drop the report when nobody is reading.
				select {
				case progressCh <- sess.progress():
				default:
				}
			}
		}

		_ = sess.fire(ctx, eventProcess)

		result, err := s.runPipeline(ctx, tenantID, ownerID, buf.Bytes(), filename, opts)
		switch {
		case err == nil:
			_ = sess.fire(ctx, eventComplete)
		case errors.Is(err, ErrCancelled):
			sess.cancel(ctx)
			result.Status = StatusCancelled
		default:
			sess.fail(ctx, err)
			result.Warnings = append(result.Warnings, err.Error())
		}
		resultCh <- result
	}()

	return progressCh, resultCh
}
