package http

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
	"github.com/FanzCEO/GirlFanz-sub003/usecase"
)

const oauthStateTTL = 10 * time.Minute

type IOAuthHandler interface {
	GetAuthURL(c *gin.Context)
	Callback(c *gin.Context)
	Disconnect(c *gin.Context)
}

type pendingAuth struct {
	creatorID string
	platform  model.Platform
	expires   time.Time
}

type oauthHandler struct {
	uc  usecase.IDistributionUsecase
	now func() time.Time

	stateMu sync.Mutex
	states  map[string]pendingAuth
}

func NewOAuthHandler(uc usecase.IDistributionUsecase) IOAuthHandler {
	return newOAuthHandler(uc)
}

func newOAuthHandler(uc usecase.IDistributionUsecase) *oauthHandler {
	return &oauthHandler{uc: uc, now: time.Now, states: map[string]pendingAuth{}}
}

func randomState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// GetAuthURL handles GET /auth/:platform for an authenticated creator.
func (h *oauthHandler) GetAuthURL(c *gin.Context) {
	creatorID := c.GetString("creator_id")
	if creatorID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing creator_id"})
		return
	}
	p, ok := platformParam(c)
	if !ok {
		return
	}

	state := randomState()
	authURL, err := h.uc.AuthorizationURL(c.Request.Context(), creatorID, p, state)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	h.stateMu.Lock()
	h.gcLocked()
	h.states[state] = pendingAuth{creatorID: creatorID, platform: p, expires: h.now().Add(oauthStateTTL)}
	h.stateMu.Unlock()

	c.JSON(http.StatusOK, gin.H{"auth_url": authURL, "state": state})
}

// Callback handles GET /auth/:platform/callback. The state issued by GetAuthURL
// identifies the creator, so this route is not behind the JWT middleware.
func (h *oauthHandler) Callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errParam, "description": c.Query("error_description")})
		return
	}
	p, ok := platformParam(c)
	if !ok {
		return
	}
	code := c.Query("code")
	state := c.Query("state")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}

	pending, ok := h.takeState(state)
	if !ok || pending.platform != p {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_state"})
		return
	}

	ts, err := h.uc.ConnectAccount(c.Request.Context(), pending.creatorID, p, code, state)
	if err != nil {
		logger.GetLogger().
			WithField("platform", p).
			WithField("creator_id", pending.creatorID).
			WithError(err).
			Warn("oauth callback failed")
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":   true,
		"platform":    p,
		"external_id": ts.ExternalID,
		"scope":       ts.Scope,
		"expires_at":  ts.ExpiresAt,
	})
}

// Disconnect handles DELETE /api/distribution/:platform/account.
func (h *oauthHandler) Disconnect(c *gin.Context) {
	creatorID := c.GetString("creator_id")
	p, ok := platformParam(c)
	if !ok {
		return
	}
	if err := h.uc.DisconnectAccount(c.Request.Context(), creatorID, p); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"disconnected": true, "platform": p})
}

func (h *oauthHandler) takeState(state string) (pendingAuth, bool) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	pending, ok := h.states[state]
	if !ok {
		return pendingAuth{}, false
	}
	delete(h.states, state)
	if h.now().After(pending.expires) {
		return pendingAuth{}, false
	}
	return pending, true
}

// gcLocked drops expired states. Caller holds stateMu.
func (h *oauthHandler) gcLocked() {
	now := h.now()
	for k, v := range h.states {
		if now.After(v.expires) {
			delete(h.states, k)
		}
	}
}
