package http

import (
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"tracker_server/core/port/in"
	"tracker_server/infra/middleware"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/response"
)

type AuthConfig struct {
	// FrontendURL receives the browser after the OAuth callback.
	FrontendURL  string
	SecureCookie bool
}

// AuthHandler handles Google sign-in and session endpoints.
type AuthHandler struct {
	auth in.AuthService
	cfg  AuthConfig
}

func NewAuthHandler(auth in.AuthService, cfg AuthConfig) *AuthHandler {
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = "/"
	}
	return &AuthHandler{auth: auth, cfg: cfg}
}

// Register mounts the public OAuth routes and the session routes behind requireAuth.
func (h *AuthHandler) Register(router fiber.Router, requireAuth fiber.Handler) {
	router.Get("/auth/google", h.Begin)
	router.Get("/auth/google/callback", h.Callback)
	router.Get("/me", requireAuth, h.Me)
	router.Post("/logout", requireAuth, h.Logout)
}

// Begin redirects to the Google consent screen.
func (h *AuthHandler) Begin(c *fiber.Ctx) error {
	authURL, err := h.auth.BeginLogin(c.UserContext())
	if err != nil {
		return err
	}
	return c.Redirect(authURL, fiber.StatusFound)
}

// Callback completes sign-in, sets the session cookie and returns to the frontend.
func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	if denied := c.Query("error"); denied != "" {
		logger.WithContext(c.UserContext()).Warn("oauth consent denied: %s", denied)
		return c.Redirect(h.frontendURL(apperr.CodeOAuthFailed), fiber.StatusFound)
	}

	session, err := h.auth.CompleteLogin(c.UserContext(), c.Query("state"), c.Query("code"))
	if err != nil {
		logger.WithContext(c.UserContext()).WithError(err).Warn("oauth callback failed")
		return c.Redirect(h.frontendURL(apperr.AsAppError(err).Code), fiber.StatusFound)
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.Claims.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(h.cfg.FrontendURL, fiber.StatusFound)
}

func (h *AuthHandler) frontendURL(errCode string) string {
	sep := "?"
	if strings.Contains(h.cfg.FrontendURL, "?") {
		sep = "&"
	}
	return h.cfg.FrontendURL + sep + "error=" + url.QueryEscape(strings.ToLower(errCode))
}

type meResponse struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	MailConnected bool   `json:"mail_connected"`
}

// Me returns the signed-in account.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	acc, err := h.auth.CurrentAccount(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return response.OK(c, meResponse{
		UserID:        acc.UserID,
		Email:         acc.Email,
		Name:          acc.Name,
		MailConnected: acc.HasCredential(),
	})
}

// Logout revokes the session and clears the cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims := middleware.GetSession(c)
	if claims == nil {
		return apperr.AuthRequired("")
	}
	if err := h.auth.Logout(c.UserContext(), claims); err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return response.OK(c, fiber.Map{"logged_out": true})
}
