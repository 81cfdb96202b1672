package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Logger records audit events.
type Logger interface {
	// Log records a successful action.
	Log(ctx context.Context, action string, opts ...EventOption) error
	// LogError records a failed action.
	LogError(ctx context.Context, action string, err error, opts ...EventOption) error
}

type contextExtractor func(context.Context) (string, bool)

type logger struct {
	storage           Storage
	tenantIDExtractor contextExtractor
	userIDExtractor   contextExtractor
}

// Option configures the audit logger.
type Option func(*logger)

// WithTenantIDExtractor registers a function that pulls the tenant id from context.
func WithTenantIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *logger) { l.tenantIDExtractor = fn }
}

// WithUserIDExtractor registers a function that pulls the user id from context.
func WithUserIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *logger) { l.userIDExtractor = fn }
}

// NewLogger creates a new audit logger.
func NewLogger(storage Storage, opts ...Option) Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}

	l := &logger{storage: storage}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithTenant sets the tenant id explicitly, overriding the context extractor.
func WithTenant(tenantID string) EventOption {
	return func(e *Event) { e.TenantID = tenantID }
}

// WithUser sets the user id explicitly, overriding the context extractor.
func WithUser(userID string) EventOption {
	return func(e *Event) { e.UserID = userID }
}

// WithResource sets the resource type and id.
func WithResource(resource, id string) EventOption {
	return func(e *Event) {
		e.Resource = resource
		e.ResourceID = id
	}
}

// WithSeverity sets the event severity.
func WithSeverity(s Severity) EventOption {
	return func(e *Event) { e.Severity = s }
}

// WithDetail adds a detail entry to the event.
func WithDetail(key string, value any) EventOption {
	return func(e *Event) {
		if e.Details == nil {
			e.Details = make(map[string]any)
		}
		e.Details[key] = value
	}
}

func (l *logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	event := l.eventFromContext(ctx)
	event.ID = uuid.New().String()
	event.CreatedAt = time.Now()
	event.Action = action
	event.Result = ResultSuccess
	event.Severity = SeverityInfo

	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, event)
}

func (l *logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	event := l.eventFromContext(ctx)
	event.ID = uuid.New().String()
	event.CreatedAt = time.Now()
	event.Action = action
	event.Result = ResultError
	event.Severity = SeverityWarning
	event.Error = err.Error()

	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, event)
}

func (l *logger) eventFromContext(ctx context.Context) Event {
	event := Event{}

	if l.tenantIDExtractor != nil {
		if tenantID, ok := l.tenantIDExtractor(ctx); ok {
			event.TenantID = tenantID
		}
	}
	if l.userIDExtractor != nil {
		if userID, ok := l.userIDExtractor(ctx); ok {
			event.UserID = userID
		}
	}
	return event
}
