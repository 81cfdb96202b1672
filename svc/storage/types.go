package storage

import (
	"time"

	"github.com/dmitrymomot/filekit/pkg/imaging"
	"github.com/dmitrymomot/filekit/pkg/security"
)

// Content categories recognized by the pipeline. Categories outside this set
// are accepted and treated as generic documents for sizing and compliance.
const (
	CategoryImage    = "image"
	CategoryDocument = "document"
	CategoryArchive  = "archive"
	CategoryAvatar   = "avatar"
)

// DownloadPermission controls who may fetch a stored file.
type DownloadPermission string

const (
	DownloadPrivate DownloadPermission = "private"
	DownloadTenant  DownloadPermission = "tenant"
	DownloadPublic  DownloadPermission = "public"
)

// UploadOptions carries caller intent for one upload.
type UploadOptions struct {
	Category           string
	Title              string
	Tags               []string
	VirusScan          bool
	ContentValidation  bool
	GenerateThumbnails bool
	OptimizeImages     bool
	RequireEncryption  bool
	DownloadPermission DownloadPermission
	RetentionDays      int
}

// DefaultUploadOptions enables every protection.
func DefaultUploadOptions(category string) UploadOptions {
	return UploadOptions{
		Category:           category,
		VirusScan:          true,
		ContentValidation:  true,
		GenerateThumbnails: true,
		OptimizeImages:     true,
		DownloadPermission: DownloadPrivate,
	}
}

// UploadStatus is the terminal disposition reported to the caller.
type UploadStatus string

const (
	StatusCompleted UploadStatus = "completed"
	StatusInfected  UploadStatus = "infected"
	StatusFailed    UploadStatus = "failed"
	StatusCancelled UploadStatus = "cancelled"
)

// UploadResult is the single terminal outcome of an upload.
type UploadResult struct {
	FileID       string
	StoragePath  string
	DeliveryURL  string
	ThumbnailURL string
	Size         int64
	MIMEType     string
	Checksum     string // hex SHA-256
	Status       UploadStatus
	Warnings     []string
}

// StoredFile is the persisted record of a completed upload.
type StoredFile struct {
	ID              string
	TenantID        string
	OwnerID         string
	Filename        string
	StoragePath     string
	Size            int64
	MIMEType        string
	Checksum        string
	Category        string
	Variants        map[string]imaging.Variant
	ComplianceLevel security.Level
	Encryption      map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

// Encrypted reports whether the stored bytes are sealed.
func (f StoredFile) Encrypted() bool {
	return security.IsEncrypted(f.Encryption)
}

// Progress is one lossy progress report during a multipart upload. Consumers
// must rely on the terminal UploadResult, not on seeing every percentage.
type Progress struct {
	SessionID     string
	BytesUploaded int64
	TotalBytes    int64
	Percent       float64
}
