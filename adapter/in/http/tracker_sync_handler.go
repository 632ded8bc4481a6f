package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"

	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/response"
)

// CredentialSource resolves a user's mail credential.
type CredentialSource interface {
	Credential(ctx context.Context, userID string) (*oauth2.Token, error)
}

type SyncConfig struct {
	LockTTL time.Duration
	// FetchDefaultMaxResults applies to the fetch route when maxResults is absent.
	FetchDefaultMaxResults int
	MaxResultsLimit        int
}

// SyncHandler triggers mail sync runs.
type SyncHandler struct {
	sync        in.SyncService
	credentials CredentialSource
	lock        out.SyncLock
	cfg         SyncConfig
}

func NewSyncHandler(sync in.SyncService, credentials CredentialSource, lock out.SyncLock, cfg SyncConfig) *SyncHandler {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.FetchDefaultMaxResults <= 0 {
		cfg.FetchDefaultMaxResults = 30
	}
	if cfg.MaxResultsLimit <= 0 {
		cfg.MaxResultsLimit = 100
	}
	return &SyncHandler{sync: sync, credentials: credentials, lock: lock, cfg: cfg}
}

// Register mounts the sync routes. mw runs before every route (auth, rate limit).
func (h *SyncHandler) Register(router fiber.Router, mw ...fiber.Handler) {
	sync := router.Group("/sync", mw...)
	sync.Post("/gmail-unknown", h.SyncSinceCheckpoint)
	sync.Post("/gmail-unknown/fetch", h.FetchRecent)
	sync.Get("/status", h.Status)
}

// SyncSinceCheckpoint processes mail newer than the user's last sync.
func (h *SyncHandler) SyncSinceCheckpoint(c *fiber.Ctx) error {
	return h.run(c, &in.SyncRequest{UseCheckpoint: true})
}

// FetchRecent processes the newest maxResults candidates with no date bound.
func (h *SyncHandler) FetchRecent(c *fiber.Ctx) error {
	maxResults, err := queryIntInRange(c, "maxResults", h.cfg.FetchDefaultMaxResults, 1, h.cfg.MaxResultsLimit)
	if err != nil {
		return err
	}
	return h.run(c, &in.SyncRequest{MaxResults: maxResults})
}

func (h *SyncHandler) run(c *fiber.Ctx, req *in.SyncRequest) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()

	release, err := h.lock.Acquire(ctx, userID, h.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, out.ErrLockHeld) {
			return apperr.Conflict("a sync is already running for this account")
		}
		return apperr.StoreError("acquire sync lock", err)
	}
	defer release()

	token, err := h.credentials.Credential(ctx, userID)
	if err != nil {
		return err
	}

	req.UserID = userID
	req.Credential = token
	result, err := h.sync.RunSync(ctx, req)
	if err != nil {
		return err
	}
	return response.OK(c, result)
}

// Status returns the user's sync checkpoint, or null before the first run.
func (h *SyncHandler) Status(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	cp, err := h.sync.Status(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return response.OK(c, cp)
}
