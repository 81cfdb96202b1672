// Package events is the outbound notification queue: file lifecycle events
// are published here and delivered to subscriber endpoints as HMAC-signed
// webhooks with retry and exponential backoff.
//
// Delivery is decoupled from the upload pipeline. Publish never blocks and
// never fails the caller; a full queue drops the event with a log entry, and
// delivery failures are retried by the queue's own workers.
package events
