package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/filekit/pkg/audit"
	"github.com/dmitrymomot/filekit/pkg/blob"
	"github.com/dmitrymomot/filekit/pkg/cdn"
	"github.com/dmitrymomot/filekit/pkg/events"
	"github.com/dmitrymomot/filekit/pkg/imaging"
	"github.com/dmitrymomot/filekit/pkg/scanner"
	"github.com/dmitrymomot/filekit/pkg/security"
	"github.com/dmitrymomot/filekit/pkg/tenantstore"
	"github.com/dmitrymomot/filekit/pkg/validator"
)

// Deps are the collaborators the orchestrator sequences. All are required.
type Deps struct {
	Store     blob.Store
	Validator *validator.Validator
	Scanner   *scanner.Scanner
	Security  *security.Manager
	Tenants   *tenantstore.Manager
	CDN       *cdn.Manager
}

func (d Deps) validate() error {
	if d.Store == nil || d.Validator == nil || d.Scanner == nil ||
		d.Security == nil || d.Tenants == nil || d.CDN == nil {
		return errors.New("storage: all dependencies are required")
	}
	return nil
}

// Service is the upload/download orchestrator.
type Service struct {
	deps    Deps
	auditor audit.Logger
	queue   *events.Queue
	log     *slog.Logger

	retries int
	backoff time.Duration

	mu       sync.RWMutex
	files    map[string]StoredFile
	sessions map[string]*UploadSession
}

// Option configures a Service.
type Option func(*Service)

// WithAuditLogger attaches an audit sink for pipeline events.
func WithAuditLogger(l audit.Logger) Option {
	return func(s *Service) { s.auditor = l }
}

// WithEventQueue attaches the outbound notification queue.
func WithEventQueue(q *events.Queue) Option {
	return func(s *Service) { s.queue = q }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithBackendRetry tunes the persist retry loop.
func WithBackendRetry(retries int, backoff time.Duration) Option {
	return func(s *Service) {
		if retries >= 0 {
			s.retries = retries
		}
		if backoff > 0 {
			s.backoff = backoff
		}
	}
}

// New creates the orchestrator.
func New(deps Deps, opts ...Option) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	s := &Service{
		deps:     deps,
		log:      slog.Default(),
		retries:  3,
		backoff:  200 * time.Millisecond,
		files:    make(map[string]StoredFile),
		sessions: make(map[string]*UploadSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// UpdateTenantQuota adjusts a tenant's storage limit and invalidates cached
// usage.
func (s *Service) UpdateTenantQuota(ctx context.Context, q tenantstore.Quota) error {
	return s.deps.Tenants.UpdateQuota(ctx, q)
}

// Session returns a live or terminal upload session by id.
func (s *Service) Session(id string) (*UploadSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Upload runs the full pipeline for in-memory content and returns the single
// terminal result. The returned error is nil only when status is completed.
func (s *Service) Upload(ctx context.Context, tenantID, ownerID string, content []byte, filename string, opts UploadOptions) (UploadResult, error) {
	sess := newSession(int64(len(content)))
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	_ = sess.fire(ctx, eventStart)
	if err := sess.addBytes(int64(len(content))); err != nil {
		sess.fail(ctx, err)
		return UploadResult{Status: StatusFailed}, err
	}
	_ = sess.fire(ctx, eventProcess)

	result, err := s.runPipeline(ctx, tenantID, ownerID, content, filename, opts)
	switch {
	case err == nil:
		_ = sess.fire(ctx, eventComplete)
	case errors.Is(err, ErrCancelled):
		sess.cancel(ctx)
		result.Status = StatusCancelled
	default:
		sess.fail(ctx, err)
	}
	return result, err
}

// runPipeline executes the fixed stage order. It returns the terminal result
// and the first fatal error, after cleaning up anything already persisted.
func (s *Service) runPipeline(ctx context.Context, tenantID, ownerID string, content []byte, filename string, opts UploadOptions) (UploadResult, error) {
	if tenantID == "" {
		return UploadResult{Status: StatusFailed}, fmt.Errorf("%w: missing tenant id", ErrTenantIsolation)
	}
	category := opts.Category
	if category == "" {
		category = CategoryDocument
	}

	result := UploadResult{
		FileID: uuid.New().String(),
		Size:   int64(len(content)),
		Status: StatusFailed,
	}

	sum := sha256.Sum256(content)
	result.Checksum = hex.EncodeToString(sum[:])

	// Stage 1: validation. The validator never raises; only the orchestrator
	// turns an invalid result into an abort.
	vres := s.deps.Validator.Validate(content, filename, category)
	result.MIMEType = vres.DetectedMIME
	result.Warnings = append(result.Warnings, vres.Warnings...)
	if opts.ContentValidation && !vres.IsValid {
		return result, fmt.Errorf("%w: %s", ErrValidation, strings.Join(vres.Errors, "; "))
	}

	if err := checkCancelled(ctx); err != nil {
		return result, err
	}

	// Stage 2: namespace and quota. A quota-store outage fails open; an
	// exceeded quota never does.
	ns, err := s.deps.Tenants.GetOrCreateNamespace(ctx, tenantID)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrTenantIsolation, err)
	}

	reserved := false
	switch err := s.deps.Tenants.Reserve(ctx, tenantID, result.Size); {
	case err == nil:
		reserved = true
	case errors.Is(err, tenantstore.ErrQuotaExceeded):
		return result, fmt.Errorf("%w: %d additional bytes", ErrQuotaExceeded, result.Size)
	default:
		s.log.WarnContext(ctx, "quota reservation unavailable, proceeding unreserved",
			slog.String("tenant_id", tenantID), slog.Any("error", err))
		s.audit(ctx, "upload.quota_bypassed", tenantID, result.FileID, audit.SeverityWarning, map[string]any{"bytes": result.Size})
		result.Warnings = append(result.Warnings, "quota enforcement bypassed: measurement outage")
	}
	releaseQuota := func() {
		if reserved {
			if err := s.deps.Tenants.Release(ctx, tenantID, result.Size); err != nil {
				s.log.WarnContext(ctx, "quota release failed", slog.Any("error", err))
			}
		}
	}

	if err := checkCancelled(ctx); err != nil {
		releaseQuota()
		return result, err
	}

	storagePath := buildStoragePath(category, vres.SanitizedFilename, time.Now())

	// Stage 3: virus scan.
	if opts.VirusScan {
		scan := s.deps.Scanner.Scan(ctx, content, vres.SanitizedFilename, category)
		switch scan.Status {
		case scanner.StatusInfected:
			releaseQuota()
			return s.handleInfected(ctx, result, ns.Name, storagePath, tenantID, category, content, scan)
		case scanner.StatusError:
			// Inconclusive is not infected: allow with a flag.
			result.Warnings = append(result.Warnings, "virus scan inconclusive: "+scan.Error)
			s.audit(ctx, "upload.scan_inconclusive", tenantID, result.FileID, audit.SeverityWarning, map[string]any{"error": scan.Error})
		}
	}

	// Stage 4: compliance.
	check := s.deps.Security.CheckCompliance(ctx, content, vres.SanitizedFilename, security.CheckOptions{
		Category: category,
		Public:   opts.DownloadPermission == DownloadPublic,
	}, tenantID)
	result.Warnings = append(result.Warnings, check.Recommendations...)
	if !check.Compliant() {
		releaseQuota()
		return result, fmt.Errorf("%w: %s", ErrCompliance, strings.Join(check.Issues, "; "))
	}

	// Stage 5: encryption. Content marked encryption_required never persists
	// as plaintext, including derived variants.
	payload := content
	var encMeta map[string]string
	if check.EncryptionRequired || opts.RequireEncryption {
		payload, encMeta, err = s.deps.Security.Encrypt(ctx, content, tenantID)
		if err != nil {
			releaseQuota()
			return result, fmt.Errorf("%w: %v", ErrEncryption, err)
		}
	}

	if err := checkCancelled(ctx); err != nil {
		releaseQuota()
		return result, err
	}

	// Stage 6: persist.
	if err := s.putWithRetry(ctx, ns.Name, storagePath, payload, vres.DetectedMIME); err != nil {
		releaseQuota()
		return result, err
	}
	result.StoragePath = storagePath
	persisted := []string{storagePath}
	cleanup := func() {
		for _, p := range persisted {
			if err := s.deps.Store.Delete(ctx, ns.Name, p); err != nil {
				s.log.ErrorContext(ctx, "orphan cleanup failed",
					slog.String("path", p), slog.Any("error", err))
			}
		}
		releaseQuota()
	}

	if err := checkCancelled(ctx); err != nil {
		cleanup()
		return result, err
	}

	// Stage 7: image variants. Failures past this point never undo the
	// persisted upload; they downgrade to warnings.
	file := StoredFile{
		ID:              result.FileID,
		TenantID:        tenantID,
		OwnerID:         ownerID,
		Filename:        vres.SanitizedFilename,
		StoragePath:     storagePath,
		Size:            result.Size,
		MIMEType:        vres.DetectedMIME,
		Checksum:        result.Checksum,
		Category:        category,
		ComplianceLevel: check.RequiredLevel,
		Encryption:      encMeta,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	// Variants are derived from plaintext, so encrypted content gets none.
	thumbName := ""
	if opts.GenerateThumbnails && encMeta == nil && isImageCategory(category) && strings.HasPrefix(vres.DetectedMIME, "image/") {
		variants, verr := imaging.Process(ctx, content, imaging.Options{
			StripMetadata: true,
			WebP:          opts.OptimizeImages,
		})
		if verr != nil {
			result.Warnings = append(result.Warnings, "variant derivation failed: "+verr.Error())
		} else {
			file.Variants = make(map[string]imaging.Variant, len(variants))
			for name, v := range variants {
				if name == "original" {
					continue
				}
				vp := variantPath(storagePath, name, v.Format)
				if perr := s.deps.Store.Put(ctx, ns.Name, vp, v.Data, "image/"+v.Format); perr != nil {
					result.Warnings = append(result.Warnings, "variant "+name+" not stored: "+perr.Error())
					continue
				}
				persisted = append(persisted, vp)
				file.Variants[name] = v
				if name == "thumb_300" {
					thumbName = vp
				}
			}
		}
	}

	// Stage 8: delivery URLs. Never fatal.
	cacheLevel := cdn.CacheShort
	if opts.DownloadPermission == DownloadPublic {
		cacheLevel = cdn.CacheMedium
	}
	result.DeliveryURL = s.deps.CDN.GetURL(ns.Name+"/"+storagePath, cdn.Transformation{}, cacheLevel, tenantID)
	if thumbName != "" {
		result.ThumbnailURL = s.deps.CDN.GetURL(ns.Name+"/"+thumbName, cdn.Transformation{}, cacheLevel, tenantID)
	}

	// Stage 9: finalize.
	if err := s.deps.Tenants.RecordFile(ctx, tenantID, tenantstore.FileRecord{
		Path:      storagePath,
		Category:  category,
		SizeBytes: result.Size,
		CreatedAt: file.CreatedAt,
	}); err != nil {
		s.log.WarnContext(ctx, "usage index update failed", slog.Any("error", err))
	}

	s.mu.Lock()
	s.files[file.ID] = file
	s.mu.Unlock()

	result.Status = StatusCompleted
	s.audit(ctx, "upload.completed", tenantID, result.FileID, audit.SeverityInfo, map[string]any{
		"path":     storagePath,
		"size":     result.Size,
		"category": category,
	})
	s.publish(events.NewEvent(events.TypeFileUploaded, tenantID, map[string]any{
		"file_id": result.FileID,
		"path":    storagePath,
		"size":    result.Size,
	}))
	return result, nil
}

// handleInfected applies the quarantine policy and reports the infection.
func (s *Service) handleInfected(ctx context.Context, result UploadResult, namespace, storagePath, tenantID, category string, content []byte, scan scanner.Result) (UploadResult, error) {
	result.Status = StatusInfected
	action := s.deps.Scanner.Policy().ActionFor(tenantID, category)

	s.audit(ctx, "upload.infected", tenantID, result.FileID, audit.SeverityCritical, map[string]any{
		"threat":       scan.ThreatName,
		"threat_level": string(scan.ThreatLevel),
		"action":       string(action),
	})

	switch action {
	case scanner.ActionQuarantine:
		qp := quarantinePath(storagePath)
		if err := s.deps.Store.Put(ctx, namespace, qp, content, "application/octet-stream"); err != nil {
			s.log.ErrorContext(ctx, "quarantine write failed", slog.Any("error", err))
		}
		s.publish(events.NewEvent(events.TypeFileQuarantined, tenantID, map[string]any{
			"file_id": result.FileID,
			"threat":  scan.ThreatName,
			"path":    qp,
		}))
	case scanner.ActionDelete:
		// Nothing persisted yet; dropping the content is the action.
	case scanner.ActionNotify:
		s.publish(events.NewEvent(events.TypeFileInfected, tenantID, map[string]any{
			"file_id": result.FileID,
			"threat":  scan.ThreatName,
		}))
	}

	return result, fmt.Errorf("%w: %s (%s)", ErrVirusDetected, scan.ThreatName, scan.ThreatLevel)
}

// putWithRetry persists bytes, retrying transient backend failures with
// exponential backoff. Only the orchestrator retries backend calls.
func (s *Service) putWithRetry(ctx context.Context, namespace, path string, data []byte, contentType string) error {
	var lastErr error
	delay := s.backoff
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ErrCancelled
			case <-time.After(delay):
				delay *= 2
			}
		}
		err := s.deps.Store.Put(ctx, namespace, path, data, contentType)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, blob.ErrUnavailable) && !errors.Is(err, blob.ErrTimeout) {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, lastErr)
}

func (s *Service) audit(ctx context.Context, action, tenantID, fileID string, severity audit.Severity, details map[string]any) {
	if s.auditor == nil {
		return
	}
	opts := []audit.EventOption{
		audit.WithTenant(tenantID),
		audit.WithResource("file", fileID),
		audit.WithSeverity(severity),
	}
	for k, v := range details {
		opts = append(opts, audit.WithDetail(k, v))
	}
	if err := s.auditor.Log(ctx, action, opts...); err != nil {
		s.log.WarnContext(ctx, "audit emission failed",
			slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) publish(event events.Event) {
	if s.queue != nil {
		s.queue.Publish(event)
	}
}

func isImageCategory(category string) bool {
	return category == CategoryImage || category == CategoryAvatar
}

func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}
