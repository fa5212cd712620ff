package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"video-parser/internal/auth"
	"video-parser/internal/batch"
	"video-parser/internal/monitor"
	"video-parser/internal/ratelimit"
	"video-parser/internal/registry"
	"video-parser/pkg/models"
)

const (
	msgSuccess      = "解析成功"
	requestIDHeader = "X-Request-ID"
	version         = "1.0.0"
)

// Server represents the API server
type Server struct {
	config       *models.Config
	registry     *registry.Registry
	credentials  models.CredentialProvider
	batch        *batch.BatchManager
	monitor      *monitor.Monitor
	authService  *auth.AuthService
	authMW       *auth.AuthMiddleware
	rateLimitMgr *ratelimit.Manager
	router       *gin.Engine
	httpServer   *http.Server
	startedAt    time.Time
	logger       zerolog.Logger
}

// Options carries the collaborators the server does not own
type Options struct {
	Registry    *registry.Registry
	Credentials models.CredentialProvider
	Monitor     *monitor.Monitor
	Logger      *zerolog.Logger
}

// NewServer creates a new API server and builds its routes
func NewServer(cfg *models.Config, opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, errors.New("server requires a registry")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "server").Logger()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "server").Logger()
	}

	mon := opts.Monitor
	if mon == nil {
		mon = monitor.NewMonitor()
	}

	authSvc, err := auth.NewAuthService(auth.Config{
		AdminPassword: cfg.Auth.AdminPassword,
		JWTSecret:     cfg.Auth.JWTSecret,
		TokenExpiry:   time.Duration(cfg.Auth.TokenExpiry) * time.Hour,
		Logger:        &logger,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating auth service: %w", err)
	}

	mwConfig := auth.MiddlewareConfig{}
	if cfg.Auth.Enabled {
		mwConfig = auth.MiddlewareConfig{
			SecretToken:   cfg.Auth.SecretToken,
			BasicUsername: cfg.Auth.BasicUsername,
			BasicPassword: cfg.Auth.BasicPassword,
		}
	}
	authMW := auth.NewAuthMiddleware(authSvc, mwConfig)
	authMW.SetLogger(logger)

	bm := batch.NewBatchManager(opts.Registry, batch.Config{
		MaxConcurrent: cfg.Batch.MaxConcurrent,
		MaxItems:      cfg.Batch.MaxItems,
		Retention:     time.Duration(cfg.Batch.JobRetention) * time.Minute,
	})
	bm.SetLogger(logger.With().Str("component", "batch_manager").Logger())

	s := &Server{
		config:      cfg,
		registry:    opts.Registry,
		credentials: opts.Credentials,
		batch:       bm,
		monitor:     mon,
		authService: authSvc,
		authMW:      authMW,
		rateLimitMgr: ratelimit.NewManager(ratelimit.Config{
			Enabled:           cfg.RateLimit.Enabled,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			MaxConcurrent:     cfg.RateLimit.MaxConcurrent,
			WhitelistedIPs:    cfg.RateLimit.WhitelistedIPs,
		}),
		startedAt: time.Now(),
		logger:    logger,
	}

	s.router = s.newRouter()
	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// newRouter creates the gin engine with middleware and routes
func (s *Server) newRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(s.requestIDMiddleware())
	router.Use(s.loggerMiddleware())
	router.Use(s.corsMiddleware())
	router.Use(s.monitor.Middleware())
	router.Use(s.rateLimitMgr.Middleware())
	router.Use(s.authMW.TokenRequired())

	s.setupRoutes(router)
	return router
}

// Start starts the API server
func (s *Server) Start() error {
	s.rateLimitMgr.Start()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	go func() {
		s.logger.Info().Str("address", s.httpServer.Addr).Msg("Starting API server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Fatal().Err(err).Msg("Error starting server")
		}
	}()

	return nil
}

// Stop stops the API server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Error shutting down server")
			shutdownErr = err
		}
	}

	s.batch.Close()
	s.rateLimitMgr.Stop()

	s.logger.Info().Msg("API server stopped")
	return shutdownErr
}

// Run runs the server until SIGINT or SIGTERM
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	return s.Stop()
}

// setupRoutes sets up the API routes
func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/", s.index)
	router.GET("/health", s.healthCheck)
	router.GET("/metrics", gin.WrapH(s.monitor.Handler()))

	// Share link routes kept compatible with existing clients
	video := router.Group("/video", s.authMW.BasicAuth())
	{
		video.GET("/share/url/parse", s.shareURLParse)
		video.GET("/id/parse", s.videoIDParse)
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/login", s.login)
		v1.GET("/sources", s.listSources)

		videos := v1.Group("/videos", s.authMW.BasicAuth())
		{
			videos.POST("/parse", s.parseVideo)
			videos.POST("/batch", s.batchParse)
		}

		jobs := v1.Group("/jobs", s.authMW.BasicAuth())
		{
			jobs.POST("", s.createJob)
			jobs.GET("/:id", s.getJob)
			jobs.DELETE("/:id", s.cancelJob)
		}

		admin := v1.Group("/admin", s.authMW.AdminRequired())
		{
			admin.GET("/credential", s.credentialStatus)
			admin.PUT("/credential", s.updateCredential)
		}
	}
}

// statusForKind maps an error kind to the HTTP status returned to clients
func statusForKind(kind string) int {
	switch kind {
	case models.KindUnsupportedHost:
		return http.StatusBadRequest
	case models.KindIDNotFound:
		return http.StatusNotFound
	case models.KindAntiCrawlerTriggered:
		return http.StatusUnprocessableEntity
	case models.KindUpstreamRequestFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "msg": msgSuccess, "data": data})
}

func (s *Server) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "msg": msg})
}

// fail writes the error envelope for a resolution failure
func (s *Server) fail(c *gin.Context, err error) {
	kind := models.ErrorKind(err)
	status := statusForKind(kind)

	event := s.logger.Warn()
	if status == http.StatusInternalServerError {
		event = s.logger.Error()
	}
	event.Err(err).Str("kind", kind).Str("request_id", c.GetString(requestIDHeader)).Msg("Resolution failed")

	c.JSON(status, gin.H{"code": status, "msg": err.Error(), "kind": kind})
}

// Index handler
func (s *Server) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "video-parser",
		"version": version,
		"sources": s.registry.GetSourceInfo(),
		"endpoints": []string{
			"GET /video/share/url/parse?url=",
			"GET /video/id/parse?source=&video_id=",
			"POST /api/v1/videos/parse",
			"POST /api/v1/videos/batch",
		},
	})
}

// Health check handler
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   version,
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"sources":   s.registry.ListSources(),
		"system":    s.monitor.HealthCheck(),
	})
}

// Share URL parse handler; url may be free-form share text
func (s *Server) shareURLParse(c *gin.Context) {
	text := c.Query("url")
	if strings.TrimSpace(text) == "" {
		s.badRequest(c, "url is required")
		return
	}

	info, err := s.registry.Resolve(c.Request.Context(), text)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, info)
}

// Video ID parse handler
func (s *Server) videoIDParse(c *gin.Context) {
	source := models.VideoSource(c.Query("source"))
	videoID := c.Query("video_id")
	if source == "" || strings.TrimSpace(videoID) == "" {
		s.badRequest(c, "source and video_id are required")
		return
	}

	info, err := s.registry.ParseVideoID(c.Request.Context(), source, videoID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, info)
}

// Parse video handler
func (s *Server) parseVideo(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}

	info, err := s.registry.Resolve(c.Request.Context(), req.URL)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, info)
}

// Batch parse handler; resolves every url before answering
func (s *Server) batchParse(c *gin.Context) {
	var req struct {
		URLs []string `json:"urls" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}

	job, err := s.batch.Run(c.Request.Context(), req.URLs, nil)
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	s.success(c, job)
}

// Create job handler; resolves in the background
func (s *Server) createJob(c *gin.Context) {
	var req struct {
		URLs []string `json:"urls" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}

	job, err := s.batch.Start(req.URLs)
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "msg": "job accepted", "data": job})
}

// Get job handler
func (s *Server) getJob(c *gin.Context) {
	job, err := s.batch.GetJob(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "msg": err.Error()})
		return
	}
	s.success(c, job)
}

// Cancel job handler
func (s *Server) cancelJob(c *gin.Context) {
	if err := s.batch.CancelJob(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "msg": "job cancelled"})
}

// List sources handler
func (s *Server) listSources(c *gin.Context) {
	s.success(c, s.registry.GetSourceInfo())
}

// Login handler
func (s *Server) login(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}

	token, expiresAt, err := s.authService.Authenticate(req.Password)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrAdminDisabled) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"code": status, "msg": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": http.StatusOK,
		"msg":  "login succeeded",
		"data": gin.H{
			"token":      token,
			"expires_at": expiresAt,
		},
	})
}

// configured reports whether a credential is set without exposing it
func (s *Server) configured() bool {
	return s.credentials != nil && s.credentials.Get() != ""
}

// Credential status handler
func (s *Server) credentialStatus(c *gin.Context) {
	s.success(c, gin.H{"configured": s.configured()})
}

// Update credential handler; the new value applies to the next resolution
func (s *Server) updateCredential(c *gin.Context) {
	if s.credentials == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"code": http.StatusNotImplemented, "msg": "credential updates are not available"})
		return
	}

	var req struct {
		Cookie string `json:"cookie"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}

	if err := s.credentials.Set(strings.TrimSpace(req.Cookie)); err != nil {
		if errors.Is(err, models.ErrEmptyCredential) {
			s.badRequest(c, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("Failed to update credential")
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "msg": err.Error()})
		return
	}

	s.monitor.RecordCredentialUpdate()
	if claims, ok := auth.GetClaims(c); ok {
		s.logger.Info().Str("subject", claims.Subject).Msg("Credential updated")
	}
	s.success(c, gin.H{"configured": true})
}

// requestIDMiddleware tags every request with an ID, reusing a client supplied one
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// loggerMiddleware writes one structured line per request
func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("request_id", c.GetString(requestIDHeader)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// CORS middleware
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+auth.TokenHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
