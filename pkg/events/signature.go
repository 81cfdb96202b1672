package events

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Signature headers set on every delivery. The scheme binds the signature to
// a timestamp so receivers can reject replays.
const (
	HeaderSignature = "X-Filekit-Signature"
	HeaderTimestamp = "X-Filekit-Timestamp"
	HeaderEventID   = "X-Filekit-Event-Id"
)

// SignPayload computes HMAC-SHA256 over "<timestamp>.<payload>".
func SignPayload(secret string, payload []byte, timestamp int64) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.", timestamp)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifySignature checks a delivery signature and its timestamp window.
func VerifySignature(secret string, payload []byte, signature, timestamp string, maxAge time.Duration) error {
	if secret == "" {
		return ErrMissingSecret
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	if maxAge > 0 && time.Since(time.Unix(ts, 0)) > maxAge {
		return fmt.Errorf("%w: timestamp too old", ErrInvalidSignature)
	}
	expected, err := SignPayload(secret, payload, ts)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
