package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dmitrymomot/filekit/pkg/audit"
	"github.com/dmitrymomot/filekit/pkg/blob"
	"github.com/dmitrymomot/filekit/pkg/cdn"
	"github.com/dmitrymomot/filekit/pkg/config"
	"github.com/dmitrymomot/filekit/pkg/events"
	"github.com/dmitrymomot/filekit/pkg/logger"
	"github.com/dmitrymomot/filekit/pkg/pg"
	redisconn "github.com/dmitrymomot/filekit/pkg/redis"
	"github.com/dmitrymomot/filekit/pkg/scanner"
	"github.com/dmitrymomot/filekit/pkg/security"
	"github.com/dmitrymomot/filekit/pkg/tenantstore"
	"github.com/dmitrymomot/filekit/pkg/validator"
)

// Config drives NewFromEnv. Postgres and Redis settings are loaded separately
// and only when the matching feature flag enables them, so a memory-backed
// deployment needs no database environment at all.
type Config struct {
	Env       string `env:"FILEKIT_ENV" envDefault:"production"`
	MasterKey string `env:"FILEKIT_MASTER_KEY,required"` // hex, 32 bytes

	S3Bucket         string        `env:"S3_BUCKET,required"`
	S3Region         string        `env:"S3_REGION" envDefault:"us-east-1"`
	S3AccessKeyID    string        `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey      string        `env:"S3_SECRET_KEY"`
	S3Endpoint       string        `env:"S3_ENDPOINT"`
	S3ForcePathStyle bool          `env:"S3_FORCE_PATH_STYLE"`
	S3OpTimeout      time.Duration `env:"S3_OP_TIMEOUT" envDefault:"30s"`

	CDNBaseURL    string        `env:"CDN_BASE_URL,required"`
	CDNSigningKey string        `env:"CDN_SIGNING_KEY"`
	CDNSignTTL    time.Duration `env:"CDN_SIGN_TTL" envDefault:"1h"`

	ClamdAddr      string        `env:"CLAMD_ADDR" envDefault:"127.0.0.1:3310"`
	ScanTimeout    time.Duration `env:"SCAN_TIMEOUT" envDefault:"30s"`
	ScanPolicyPath string        `env:"SCAN_POLICY_PATH"`

	RedisQuotas  bool `env:"REDIS_QUOTAS_ENABLED"`
	DurableAudit bool `env:"AUDIT_PG_ENABLED"`

	EventBuffer  int `env:"EVENT_BUFFER" envDefault:"256"`
	EventWorkers int `env:"EVENT_WORKERS" envDefault:"4"`
}

// NewFromEnv assembles a Service and its collaborators from environment
// configuration. The returned shutdown function drains the outbound event
// queue; call it before process exit.
func NewFromEnv(ctx context.Context) (*Service, func(), error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, nil, err
	}

	logOpt := logger.WithProduction("filekit")
	if cfg.Env == "development" {
		logOpt = logger.WithDevelopment("filekit")
	}
	log := logger.New(logOpt)

	masterKey, err := hex.DecodeString(cfg.MasterKey)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: decode master key: %w", err)
	}

	store, err := blob.NewS3Store(ctx, blob.S3Config{
		Bucket:         cfg.S3Bucket,
		Region:         cfg.S3Region,
		AccessKeyID:    cfg.S3AccessKeyID,
		SecretKey:      cfg.S3SecretKey,
		Endpoint:       cfg.S3Endpoint,
		ForcePathStyle: cfg.S3ForcePathStyle,
		OpTimeout:      cfg.S3OpTimeout,
	})
	if err != nil {
		return nil, nil, err
	}

	var auditStorage audit.Storage
	if cfg.DurableAudit {
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return nil, nil, err
		}
		auditStorage, err = audit.NewPostgresStorageFromConfig(ctx, pgCfg)
		if err != nil {
			return nil, nil, err
		}
	} else {
		auditStorage = audit.NewMemoryStorage()
	}
	auditor := audit.NewLogger(auditStorage)

	var quotas tenantstore.QuotaStore
	if cfg.RedisQuotas {
		var redisCfg redisconn.Config
		if err := config.Load(&redisCfg); err != nil {
			return nil, nil, err
		}
		quotas, err = tenantstore.NewRedisQuotaStoreFromConfig(ctx, redisCfg)
		if err != nil {
			return nil, nil, err
		}
	} else {
		quotas = tenantstore.NewMemoryQuotaStore()
	}

	tenants := tenantstore.NewManager(quotas, tenantstore.NewMemoryIndex(),
		tenantstore.WithBlobStore(store),
		tenantstore.WithAuditLogger(auditor),
		tenantstore.WithLogger(log),
	)

	scanOpts := []scanner.Option{scanner.WithTimeout(cfg.ScanTimeout)}
	if cfg.ScanPolicyPath != "" {
		policy, err := scanner.LoadPolicy(cfg.ScanPolicyPath)
		if err != nil {
			return nil, nil, err
		}
		scanOpts = append(scanOpts, scanner.WithPolicy(policy))
	}
	scan := scanner.New(scanner.NewClamdEngine(cfg.ClamdAddr), scanOpts...)

	sec, err := security.NewManager(masterKey,
		security.WithAuditLogger(auditor),
		security.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}

	cdnOpts := []cdn.Option{cdn.WithLogger(log)}
	if cfg.CDNSigningKey != "" {
		cdnOpts = append(cdnOpts, cdn.WithSigningKey([]byte(cfg.CDNSigningKey), cfg.CDNSignTTL))
	}
	delivery, err := cdn.New(cfg.CDNBaseURL, cdnOpts...)
	if err != nil {
		return nil, nil, err
	}

	queue := events.NewQueue(cfg.EventBuffer, cfg.EventWorkers, events.WithQueueLogger(log))

	svc, err := New(Deps{
		Store:     store,
		Validator: validator.New(),
		Scanner:   scan,
		Security:  sec,
		Tenants:   tenants,
		CDN:       delivery,
	},
		WithAuditLogger(auditor),
		WithEventQueue(queue),
		WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}

	return svc, queue.Close, nil
}
