package security

import (
	"context"
	"fmt"
	"slices"
)

// AccessAction is the operation being authorized.
type AccessAction string

const (
	AccessRead   AccessAction = "read"
	AccessWrite  AccessAction = "write"
	AccessDelete AccessAction = "delete"
	AccessShare  AccessAction = "share"
)

// AccessRequest describes one authorization decision.
type AccessRequest struct {
	FileID       string
	FileTenantID string
	FileCategory string

	UserID       string
	UserTenantID string
	UserRole     string

	Action AccessAction

	// LegitimateInterest declares an educational purpose for accessing
	// student-record content, required under that regime.
	LegitimateInterest bool
}

// AccessDecision is the outcome of ValidateAccess.
type AccessDecision struct {
	Allowed    bool
	Violations []string
}

// rolePermissions maps a role to the actions it may perform.
var rolePermissions = map[string][]AccessAction{
	"admin":   {AccessRead, AccessWrite, AccessDelete, AccessShare},
	"teacher": {AccessRead, AccessWrite, AccessShare},
	"staff":   {AccessRead, AccessWrite},
	"student": {AccessRead},
	"viewer":  {AccessRead},
}

// ValidateAccess authorizes an action against a file. Checks run in order:
// tenant match (a mismatch is a hard isolation failure and a critical audit
// event), role permission, then regime-specific conditions. Violations
// accumulate so callers see every reason for a denial.
func (m *Manager) ValidateAccess(ctx context.Context, req AccessRequest) AccessDecision {
	var d AccessDecision

	if req.FileTenantID == "" || req.UserTenantID == "" || req.FileTenantID != req.UserTenantID {
		d.Violations = append(d.Violations,
			fmt.Sprintf("tenant mismatch: file belongs to %q, user belongs to %q", req.FileTenantID, req.UserTenantID))

		m.audit(ctx, "security.access.isolation_violation", req.UserTenantID, "file", req.FileID, "critical", map[string]any{
			"file_tenant_id": req.FileTenantID,
			"user_id":        req.UserID,
			"action":         string(req.Action),
		})
		return d
	}

	allowed, known := rolePermissions[req.UserRole]
	if !known {
		d.Violations = append(d.Violations, fmt.Sprintf("unknown role %q", req.UserRole))
	} else if !slices.Contains(allowed, req.Action) {
		d.Violations = append(d.Violations,
			fmt.Sprintf("role %q cannot perform %q", req.UserRole, req.Action))
	}

	level := RequiredLevel(req.FileCategory)
	if level == LevelStudentRecord && !req.LegitimateInterest {
		d.Violations = append(d.Violations,
			"student-record access requires a declared legitimate educational interest")
	}
	if level == LevelChildPrivacy && req.Action == AccessShare {
		d.Violations = append(d.Violations,
			"child-privacy content cannot be shared")
	}

	d.Allowed = len(d.Violations) == 0

	severity := "info"
	if !d.Allowed {
		severity = "warning"
	}
	m.audit(ctx, "security.access.validate", req.UserTenantID, "file", req.FileID, severity, map[string]any{
		"user_id":    req.UserID,
		"action":     string(req.Action),
		"allowed":    d.Allowed,
		"violations": len(d.Violations),
	})

	return d
}
