package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/cookbook/internal/auth"
	"github.com/MarcoPoloResearchLab/cookbook/internal/labels"
	"github.com/MarcoPoloResearchLab/cookbook/internal/recipes"
	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultRatePerMinute = 120
	defaultRateBurst     = 20
)

var (
	errMissingRecipesService = errors.New("recipes service dependency required")
	errMissingUsersService   = errors.New("users service dependency required")
	errMissingLabelsService  = errors.New("labels service dependency required")
	errMissingSessionIssuer  = errors.New("session issuer dependency required")
	errMissingValidator      = errors.New("session validator dependency required")
)

// Dependencies are the collaborators of the HTTP handler.
type Dependencies struct {
	Recipes           *recipes.Service
	Users             *users.Service
	Labels            *labels.Service
	SessionIssuer     *auth.SessionIssuer
	SessionValidator  *auth.SessionValidator
	Activity          *ActivityDispatcher
	Logger            *zap.Logger
	AdminUsername     string
	RatePerMinute     int
	RateBurst         int
	HeartbeatInterval time.Duration
	SecureCookies     bool
}

// NewHTTPHandler builds the cookbook API router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Recipes == nil {
		return nil, errMissingRecipesService
	}
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Labels == nil {
		return nil, errMissingLabelsService
	}
	if deps.SessionIssuer == nil {
		return nil, errMissingSessionIssuer
	}
	if deps.SessionValidator == nil {
		return nil, errMissingValidator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Activity
	if dispatcher == nil {
		dispatcher = NewActivityDispatcher()
	}
	perMinute := deps.RatePerMinute
	if perMinute <= 0 {
		perMinute = defaultRatePerMinute
	}
	burst := deps.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	handler := &httpHandler{
		recipes:           deps.Recipes,
		users:             deps.Users,
		labels:            deps.Labels,
		issuer:            deps.SessionIssuer,
		validator:         deps.SessionValidator,
		activity:          dispatcher,
		logger:            logger,
		adminUsername:     strings.TrimSpace(deps.AdminUsername),
		heartbeatInterval: heartbeat,
		secureCookies:     deps.SecureCookies,
	}
	limiter := newClientLimiter(perMinute, burst)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(handler.attachSession)
	router.Use(requestLogger(logger))
	router.Use(limiter.middleware)

	router.GET("/healthz", handler.handleHealth)

	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/logout", handler.handleLogout)
	router.POST("/users", handler.handleRegister)
	router.GET("/users/:username", handler.handleProfile)

	router.GET("/recipes", handler.handleSearch)
	router.GET("/recipes/:slug", handler.handleViewRecipe)
	router.GET("/recipes/:slug/comments", handler.handleListComments)

	router.GET("/tags", handler.handleListLabels(labels.KindTag))
	router.GET("/meals", handler.handleListLabels(labels.KindMeal))

	protected := router.Group("/")
	protected.Use(handler.requireSession)
	protected.PUT("/preferences", handler.handleSavePreferences)
	protected.POST("/users/:username/follow", handler.handleToggleFollow)
	protected.POST("/recipes", handler.handleCreateRecipe)
	protected.PUT("/recipes/:slug", handler.handleEditRecipe)
	protected.DELETE("/recipes/:slug", handler.handleDeleteRecipe)
	protected.POST("/recipes/:slug/fork", handler.handleForkRecipe)
	protected.POST("/recipes/:slug/favourite", handler.handleToggleFavourite)
	protected.POST("/recipes/:slug/feature", handler.handleToggleFeature)
	protected.POST("/recipes/:slug/comments", handler.handleAddComment)
	protected.DELETE("/recipes/:slug/comments/:index", handler.handleDeleteComment)
	protected.POST("/tags", handler.handleCreateLabel(labels.KindTag))
	protected.DELETE("/tags/:name", handler.handleDeleteLabel(labels.KindTag))
	protected.POST("/meals", handler.handleCreateLabel(labels.KindMeal))
	protected.DELETE("/meals/:name", handler.handleDeleteLabel(labels.KindMeal))
	protected.GET("/activity/stream", handler.handleActivityStream)

	return router, nil
}

type httpHandler struct {
	recipes           *recipes.Service
	users             *users.Service
	labels            *labels.Service
	issuer            *auth.SessionIssuer
	validator         *auth.SessionValidator
	activity          *ActivityDispatcher
	logger            *zap.Logger
	adminUsername     string
	heartbeatInterval time.Duration
	secureCookies     bool
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
