package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/filekit/pkg/audit"
	"github.com/dmitrymomot/filekit/pkg/events"
	"github.com/dmitrymomot/filekit/pkg/security"
	"github.com/dmitrymomot/filekit/pkg/tenantstore"
)

// Accessor identifies who is performing a file operation.
type Accessor struct {
	UserID             string
	TenantID           string
	Role               string
	LegitimateInterest bool
}

// file looks up a live stored file.
func (s *Service) file(fileID string) (StoredFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[fileID]
	if !ok || f.DeletedAt != nil {
		return StoredFile{}, ErrFileNotFound
	}
	return f, nil
}

// authorize runs the access check and maps isolation violations to the
// pipeline's fatal error.
func (s *Service) authorize(ctx context.Context, f StoredFile, who Accessor, action security.AccessAction) error {
	decision := s.deps.Security.ValidateAccess(ctx, security.AccessRequest{
		FileID:             f.ID,
		FileTenantID:       f.TenantID,
		FileCategory:       f.Category,
		UserID:             who.UserID,
		UserTenantID:       who.TenantID,
		UserRole:           who.Role,
		Action:             action,
		LegitimateInterest: who.LegitimateInterest,
	})
	if decision.Allowed {
		return nil
	}
	if f.TenantID != who.TenantID {
		return fmt.Errorf("%w: %s", ErrTenantIsolation, strings.Join(decision.Violations, "; "))
	}
	return fmt.Errorf("%w: %s", security.ErrAccessDenied, strings.Join(decision.Violations, "; "))
}

// Download fetches and, when necessary, decrypts a stored file.
func (s *Service) Download(ctx context.Context, who Accessor, fileID string) ([]byte, StoredFile, error) {
	f, err := s.file(fileID)
	if err != nil {
		return nil, StoredFile{}, err
	}
	if err := s.authorize(ctx, f, who, security.AccessRead); err != nil {
		return nil, StoredFile{}, err
	}

	ns, err := s.deps.Tenants.GetOrCreateNamespace(ctx, f.TenantID)
	if err != nil {
		return nil, StoredFile{}, fmt.Errorf("%w: %v", ErrTenantIsolation, err)
	}

	data, err := s.deps.Store.Get(ctx, ns.Name, f.StoragePath)
	if err != nil {
		return nil, StoredFile{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	plain, err := s.deps.Security.Decrypt(ctx, data, f.TenantID, f.Encryption)
	if err != nil {
		return nil, StoredFile{}, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	return plain, f, nil
}

// SignedDownloadURL issues a time-limited backend URL for direct download.
func (s *Service) SignedDownloadURL(ctx context.Context, who Accessor, fileID string, ttl time.Duration) (string, error) {
	f, err := s.file(fileID)
	if err != nil {
		return "", err
	}
	if err := s.authorize(ctx, f, who, security.AccessRead); err != nil {
		return "", err
	}
	ns, err := s.deps.Tenants.GetOrCreateNamespace(ctx, f.TenantID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTenantIsolation, err)
	}
	u, err := s.deps.Store.SignedURL(ctx, ns.Name, f.StoragePath, ttl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return u, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Category string
	Limit    int
}

// List returns a tenant's live files, newest first.
func (s *Service) List(ctx context.Context, tenantID string, filter ListFilter) []StoredFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []StoredFile
	for _, f := range s.files {
		if f.TenantID != tenantID || f.DeletedAt != nil {
			continue
		}
		if filter.Category != "" && f.Category != filter.Category {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Delete removes a file and its variants from the backend, releases quota,
// and soft-deletes the record.
func (s *Service) Delete(ctx context.Context, who Accessor, fileID string) error {
	f, err := s.file(fileID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, f, who, security.AccessDelete); err != nil {
		return err
	}

	ns, err := s.deps.Tenants.GetOrCreateNamespace(ctx, f.TenantID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTenantIsolation, err)
	}

	if err := s.deps.Store.Delete(ctx, ns.Name, f.StoragePath); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	for name, v := range f.Variants {
		vp := variantPath(f.StoragePath, name, v.Format)
		if err := s.deps.Store.Delete(ctx, ns.Name, vp); err != nil {
			s.log.WarnContext(ctx, "variant delete failed", "path", vp, "error", err)
		}
	}

	if err := s.deps.Tenants.Release(ctx, f.TenantID, f.Size); err != nil {
		s.log.WarnContext(ctx, "quota release failed", "error", err)
	}
	if err := s.deps.Tenants.ForgetFile(ctx, f.TenantID, f.StoragePath); err != nil {
		s.log.WarnContext(ctx, "usage index update failed", "error", err)
	}

	now := time.Now()
	s.mu.Lock()
	f.DeletedAt = &now
	f.UpdatedAt = now
	s.files[f.ID] = f
	s.mu.Unlock()

	s.audit(ctx, "file.deleted", f.TenantID, f.ID, audit.SeverityInfo, map[string]any{"path": f.StoragePath})
	s.publish(events.NewEvent(events.TypeFileDeleted, f.TenantID, map[string]any{"file_id": f.ID}))
	return nil
}

// Move re-homes a file under a new category, keeping its bytes and quota
// untouched. Derived variants are dropped and regenerated lazily on demand.
func (s *Service) Move(ctx context.Context, who Accessor, fileID, newCategory string) (StoredFile, error) {
	f, err := s.file(fileID)
	if err != nil {
		return StoredFile{}, err
	}
	if err := s.authorize(ctx, f, who, security.AccessWrite); err != nil {
		return StoredFile{}, err
	}

	ns, err := s.deps.Tenants.GetOrCreateNamespace(ctx, f.TenantID)
	if err != nil {
		return StoredFile{}, fmt.Errorf("%w: %v", ErrTenantIsolation, err)
	}

	dst := buildStoragePath(newCategory, f.Filename, time.Now())
	if err := s.deps.Store.Copy(ctx, ns.Name, f.StoragePath, dst); err != nil {
		return StoredFile{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := s.deps.Store.Delete(ctx, ns.Name, f.StoragePath); err != nil {
		s.log.WarnContext(ctx, "source delete failed after move", "path", f.StoragePath, "error", err)
	}
	for name, v := range f.Variants {
		vp := variantPath(f.StoragePath, name, v.Format)
		if err := s.deps.Store.Delete(ctx, ns.Name, vp); err != nil {
			s.log.WarnContext(ctx, "variant delete failed", "path", vp, "error", err)
		}
	}

	if err := s.deps.Tenants.ForgetFile(ctx, f.TenantID, f.StoragePath); err != nil {
		s.log.WarnContext(ctx, "usage index update failed", "error", err)
	}

	old := f.StoragePath
	now := time.Now()
	f.StoragePath = dst
	f.Category = newCategory
	f.Variants = nil
	f.UpdatedAt = now

	s.mu.Lock()
	s.files[f.ID] = f
	s.mu.Unlock()

	if err := s.deps.Tenants.RecordFile(ctx, f.TenantID, tenantstore.FileRecord{
		Path:      dst,
		Category:  newCategory,
		SizeBytes: f.Size,
		CreatedAt: now,
	}); err != nil {
		s.log.WarnContext(ctx, "usage index update failed", "error", err)
	}

	s.audit(ctx, "file.moved", f.TenantID, f.ID, audit.SeverityInfo, map[string]any{
		"source": old,
		"dest":   dst,
	})
	return f, nil
}

// Copy duplicates a file within the same tenant namespace, reserving quota
// for the copy.
func (s *Service) Copy(ctx context.Context, who Accessor, fileID string) (StoredFile, error) {
	f, err := s.file(fileID)
	if err != nil {
		return StoredFile{}, err
	}
	if err := s.authorize(ctx, f, who, security.AccessWrite); err != nil {
		return StoredFile{}, err
	}

	reserved := true
	switch err := s.deps.Tenants.Reserve(ctx, f.TenantID, f.Size); {
	case err == nil:
	case errors.Is(err, tenantstore.ErrQuotaExceeded):
		return StoredFile{}, fmt.Errorf("%w: copy needs %d bytes", ErrQuotaExceeded, f.Size)
	default:
		reserved = false
		s.log.WarnContext(ctx, "quota reservation unavailable during copy", "error", err)
	}

	ns, err := s.deps.Tenants.GetOrCreateNamespace(ctx, f.TenantID)
	if err != nil {
		return StoredFile{}, fmt.Errorf("%w: %v", ErrTenantIsolation, err)
	}

	dst := buildStoragePath(f.Category, f.Filename, time.Now())
	if err := s.deps.Store.Copy(ctx, ns.Name, f.StoragePath, dst); err != nil {
		if reserved {
			if rerr := s.deps.Tenants.Release(ctx, f.TenantID, f.Size); rerr != nil {
				s.log.WarnContext(ctx, "quota release failed", "error", rerr)
			}
		}
		return StoredFile{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	now := time.Now()
	dup := f
	dup.ID = uuid.New().String()
	dup.StoragePath = dst
	dup.Variants = nil
	dup.CreatedAt = now
	dup.UpdatedAt = now

	s.mu.Lock()
	s.files[dup.ID] = dup
	s.mu.Unlock()

	if err := s.deps.Tenants.RecordFile(ctx, f.TenantID, tenantstore.FileRecord{
		Path:      dst,
		Category:  f.Category,
		SizeBytes: f.Size,
		CreatedAt: now,
	}); err != nil {
		s.log.WarnContext(ctx, "usage index update failed", "error", err)
	}

	s.audit(ctx, "file.copied", f.TenantID, dup.ID, audit.SeverityInfo, map[string]any{
		"source": f.StoragePath,
		"dest":   dst,
	})
	return dup, nil
}
