package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/sheets/v4"
)

const stateTTL = 10 * time.Minute

// GoogleScopes covers the calendar, price document and audit sheet clients.
var GoogleScopes = []string{
	gcal.CalendarEventsScope,
	docs.DocumentsReadonlyScope,
	sheets.SpreadsheetsScope,
}

// GoogleOAuthConfig returns nil unless both client ID and secret are set.
func GoogleOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       GoogleScopes,
		Endpoint:     google.Endpoint,
	}
}

// TokenSource refreshes access tokens from the operator's stored refresh token.
func TokenSource(ctx context.Context, cfg *oauth2.Config, refreshToken string) oauth2.TokenSource {
	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
}

// oauthStates remembers issued state values until the callback consumes them.
type oauthStates struct {
	mu     sync.Mutex
	issued map[string]time.Time
}

func (s *oauthStates) issue(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.issued == nil {
		s.issued = make(map[string]time.Time)
	}
	for k, at := range s.issued {
		if now.Sub(at) > stateTTL {
			delete(s.issued, k)
		}
	}
	state := uuid.NewString()
	s.issued[state] = now
	return state
}

func (s *oauthStates) consume(state string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.issued[state]
	delete(s.issued, state)
	return ok && now.Sub(at) <= stateTTL
}

// GET /api/calendar/auth
// Starts the operator consent flow that yields GOOGLE_REFRESH_TOKEN.
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.OAuth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google integration not configured"})
		return
	}
	state := a.states.issue(time.Now())
	url := a.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	c.JSON(http.StatusOK, gin.H{
		"auth_url": url,
		"state":    state,
	})
}

// GET /oauth2callback
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.OAuth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google integration not configured"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}
	if !a.states.consume(c.Query("state"), time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown or expired state"})
		return
	}

	token, err := a.OAuth.Exchange(c.Request.Context(), code)
	if err != nil {
		a.logger().Warn("oauth code exchange failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to exchange code for token"})
		return
	}
	if token.RefreshToken == "" {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Google did not return a refresh token; revoke access and retry"})
		return
	}

	a.logger().Info("google authorization completed")
	c.JSON(http.StatusOK, gin.H{
		"message":       "Authorization successful. Set GOOGLE_REFRESH_TOKEN to the value below and restart.",
		"refresh_token": token.RefreshToken,
	})
}
