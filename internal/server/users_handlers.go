package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/cookbook/internal/auth"
	"github.com/MarcoPoloResearchLab/cookbook/internal/domainerr"
	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
	"github.com/gin-gonic/gin"
)

const opStartSession = "server.start_session"

var (
	errAlreadySignedIn = domainerr.Forbidden("server.already_signed_in", "log out before signing in again")
	errNotSignedIn     = domainerr.Forbidden("server.not_signed_in", "there is no session to end")
)

type credentialsPayload struct {
	Username string `json:"username"`
}

type preferencesPayload struct {
	Preferences string `json:"preferences"`
	Exclusions  string `json:"exclusions"`
}

type sessionResponse struct {
	Username    string    `json:"username"`
	Admin       bool      `json:"admin"`
	Preferences string    `json:"preferences"`
	Exclusions  string    `json:"exclusions"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type userPayload struct {
	Username       string    `json:"username"`
	JoinedAt       time.Time `json:"joinedAt"`
	FollowerCount  int64     `json:"followerCount"`
	FollowingCount int64     `json:"followingCount"`
	RecipeCount    int64     `json:"recipeCount"`
	Followers      []string  `json:"followers"`
	Following      []string  `json:"following"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	if actorFrom(c).Authenticated() {
		h.respondError(c, errAlreadySignedIn)
		return
	}
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "username is required")
		return
	}
	user, err := h.users.Register(c.Request.Context(), request.Username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response, err := h.startSession(c, user.Username, users.NewSessionContext(user))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	if actorFrom(c).Authenticated() {
		h.respondError(c, errAlreadySignedIn)
		return
	}
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Username) == "" {
		respondInvalidRequest(c, "username is required")
		return
	}
	user, session, err := h.users.Login(c.Request.Context(), request.Username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response, err := h.startSession(c, user.Username, session)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	if !actorFrom(c).Authenticated() {
		h.respondError(c, errNotSignedIn)
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.validator.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleProfile(c *gin.Context) {
	profile, err := h.users.Profile(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userPayload{
		Username:       profile.User.Username,
		JoinedAt:       profile.User.JoinedAt,
		FollowerCount:  profile.User.FollowerCount,
		FollowingCount: profile.User.FollowingCount,
		RecipeCount:    profile.User.RecipeCount,
		Followers:      nonNil(profile.Followers),
		Following:      nonNil(profile.Following),
	})
}

func (h *httpHandler) handleToggleFollow(c *gin.Context) {
	following, err := h.users.ToggleFollow(c.Request.Context(), c.Param("username"), actorFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": following})
}

// handleSavePreferences stores the standing filters and reissues the session
// cookie so later searches see them.
func (h *httpHandler) handleSavePreferences(c *gin.Context) {
	var request preferencesPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "preferences and exclusions must be strings")
		return
	}
	actor := actorFrom(c)
	session, err := h.users.SavePreferences(c.Request.Context(), actor, request.Preferences, request.Exclusions)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response, err := h.startSession(c, actor.Username, session)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) startSession(c *gin.Context, username string, session users.SessionContext) (sessionResponse, error) {
	var roles []string
	if h.adminUsername != "" && username == h.adminUsername {
		roles = append(roles, auth.RoleAdmin)
	}
	token, expiresAt, err := h.issuer.Issue(c.Request.Context(), username, roles, session)
	if err != nil {
		return sessionResponse{}, domainerr.NewServiceError(opStartSession, "issue_failed", err)
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.validator.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(h.issuer.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionResponse{
		Username:    username,
		Admin:       len(roles) > 0,
		Preferences: session.Preferences,
		Exclusions:  session.Exclusions,
		ExpiresAt:   expiresAt,
	}, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
