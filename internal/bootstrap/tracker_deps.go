package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"tracker_server/adapter/out/cache"
	"tracker_server/adapter/out/memory"
	"tracker_server/adapter/out/mongodb"
	"tracker_server/adapter/out/persistence"
	"tracker_server/adapter/out/provider"
	"tracker_server/config"
	"tracker_server/core/port/out"
	"tracker_server/core/service/auth"
	"tracker_server/core/service/classification"
	"tracker_server/core/service/job"
	"tracker_server/core/service/mailsync"
	"tracker_server/core/service/reconcile"
	"tracker_server/core/service/review"
	"tracker_server/infra/database"
	"tracker_server/pkg/crypto"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/ratelimit"
)

type Dependencies struct {
	Config  *config.Config
	MongoDB *mongo.Client
	SQLDB   *sqlx.DB
	Redis   *redis.Client

	// Repositories
	JobRepo        out.JobRepository
	SnapshotRepo   out.SnapshotRepository
	CheckpointRepo out.CheckpointRepository
	EventRepo      out.EventRepository
	AccountRepo    out.AccountRepository

	// Cache
	SyncLock         out.SyncLock
	OAuthStates      out.OAuthStateStore
	SessionBlacklist out.SessionBlacklist
	SyncLimiter      ratelimit.Limiter

	// Providers
	GmailProvider *provider.GmailAdapter

	// Services
	AuthService   *auth.Service
	SyncService   *mailsync.Service
	ReviewService *review.Service
	JobService    *job.Service
}

// NewDependencies connects the configured backing services and wires the
// application services. Unset MONGODB_URL, DATABASE_URL or REDIS_URL fall
// back to in-process stores.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// Document store
	if cfg.MongoDBURL != "" {
		client, err := mongodb.NewClient(ctx, cfg.MongoDBURL)
		if err != nil {
			return fail(err)
		}
		deps.MongoDB = client
		cleanups = append(cleanups, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})

		store := mongodb.NewStore(client.Database(cfg.MongoDBName))
		if err := store.EnsureIndexes(ctx); err != nil {
			return fail(err)
		}
		deps.JobRepo = store.Jobs
		deps.SnapshotRepo = store.Snapshots
		deps.CheckpointRepo = store.Checkpoints
		deps.EventRepo = store.Events
		logger.Info("MongoDB connected (database: %s)", cfg.MongoDBName)
	} else {
		deps.JobRepo = memory.NewJobStore()
		deps.SnapshotRepo = memory.NewSnapshotStore()
		deps.CheckpointRepo = memory.NewCheckpointStore()
		deps.EventRepo = memory.NewEventStore()
		logger.Warn("MONGODB_URL not set, using in-memory job store")
	}

	// Account store
	if cfg.DatabaseURL != "" {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fail(err)
		}
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL, nil)
		if err != nil {
			return fail(err)
		}
		deps.SQLDB = db
		cleanups = append(cleanups, func() { _ = db.Close() })

		var enc *crypto.Encryptor
		if cfg.EncryptionKey != "" {
			enc, err = crypto.NewEncryptor(cfg.EncryptionKey)
			if err != nil {
				return fail(err)
			}
		}
		deps.AccountRepo = persistence.NewAccountAdapter(db, enc)
	} else {
		deps.AccountRepo = memory.NewAccountStore()
		logger.Warn("DATABASE_URL not set, using in-memory account store")
	}

	// Redis
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedis(ctx, cfg.RedisURL, nil)
		if err != nil {
			return fail(err)
		}
		deps.Redis = rdb
		cleanups = append(cleanups, func() { _ = rdb.Close() })

		deps.SyncLock = cache.NewSyncLock(rdb)
		deps.OAuthStates = cache.NewOAuthStateStore(rdb)
		deps.SessionBlacklist = cache.NewSessionBlacklist(rdb)
	} else {
		deps.SyncLock = memory.NewSyncLock()
		deps.OAuthStates = memory.NewOAuthStateStore()
		deps.SessionBlacklist = memory.NewSessionBlacklist()
		logger.Warn("REDIS_URL not set, sync lock and sessions are process-local")
	}
	deps.SyncLimiter = ratelimit.New(deps.Redis, cfg.SyncRatePerMinute, time.Minute)

	// Classifier rules
	rules, err := loadRules(cfg.ClassifierRulesPath)
	if err != nil {
		return fail(err)
	}

	// Providers
	deps.GmailProvider = provider.NewGmailAdapter()

	// Services
	sessionSecret, err := sessionSecret(cfg)
	if err != nil {
		return fail(err)
	}
	deps.AuthService = auth.NewService(
		newOAuthConfig(cfg),
		provider.NewGoogleIdentity(),
		deps.AccountRepo,
		deps.OAuthStates,
		deps.SessionBlacklist,
		auth.Config{
			SessionSecret: sessionSecret,
			SessionTTL:    cfg.SessionTTL,
		},
	)

	engine := reconcile.NewEngine(deps.JobRepo, deps.SnapshotRepo, deps.EventRepo)
	deps.SyncService = mailsync.NewService(
		deps.GmailProvider,
		classification.NewClassifier(rules),
		engine,
		deps.CheckpointRepo,
		mailsync.Config{
			DefaultMaxResults: cfg.SyncDefaultMaxResults,
			MaxResultsLimit:   cfg.SyncMaxResultsLimit,
			FetchConcurrency:  cfg.SyncFetchConcurrency,
			FetchTimeout:      cfg.SyncFetchTimeout,
		},
	)
	deps.ReviewService = review.NewService(deps.JobRepo, deps.SnapshotRepo, deps.EventRepo)
	deps.JobService = job.NewService(deps.JobRepo, deps.SnapshotRepo, deps.EventRepo, cfg.SnippetPreviewLimit)

	return deps, cleanup, nil
}

func loadRules(path string) (*classification.RuleSet, error) {
	if path == "" {
		return classification.DefaultRuleSet()
	}
	rules, err := classification.LoadRuleSet(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier rules: %w", err)
	}
	logger.Info("Classifier rules loaded from %s (%d rules)", path, len(rules.Rules))
	return rules, nil
}

// newOAuthConfig returns nil when Google sign-in is not configured.
func newOAuthConfig(cfg *config.Config) *oauth2.Config {
	if !cfg.GoogleConfigured() {
		logger.Warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set, sign-in disabled")
		return nil
	}
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       auth.Scopes,
		Endpoint:     google.Endpoint,
	}
}

// sessionSecret returns the configured secret. Outside production a missing
// secret is replaced by a random one, so sessions do not survive restarts.
func sessionSecret(cfg *config.Config) (string, error) {
	if cfg.SessionSecret != "" {
		return cfg.SessionSecret, nil
	}
	if cfg.IsProduction() {
		return "", fmt.Errorf("SESSION_SECRET is required in production")
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	logger.Warn("SESSION_SECRET not set, using an ephemeral secret")
	return hex.EncodeToString(b), nil
}
