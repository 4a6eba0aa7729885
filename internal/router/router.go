package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/examforge-backend/internal/config"
	"github.com/stemsi/examforge-backend/internal/handler"
	"github.com/stemsi/examforge-backend/internal/middleware"
	"github.com/stemsi/examforge-backend/internal/response"
	"github.com/stemsi/examforge-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Attempt *handler.AttemptHandler
	Preview *handler.PreviewHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for activity reports (60 events per minute per IP).
	activityLimiter := middleware.NewRateLimiter(60, time.Minute)

	// ─── 1. Taker Group (JWT) ──────────────────────────────────────────
	takerAPI := router.Group("/api/v1/sessions/:session_id/attempt")
	takerAPI.Use(middleware.RequireTakerJWT(authService))
	{
		takerAPI.POST("/join", handlers.Attempt.JoinSession)
		takerAPI.POST("/start", handlers.Attempt.StartAttempt)
		takerAPI.GET("", handlers.Attempt.GetAttemptState)
		takerAPI.GET("/paper", handlers.Attempt.GetAttemptPaper)
		takerAPI.POST("/answers", handlers.Attempt.SubmitAnswer)
		takerAPI.POST("/answers/batch", handlers.Attempt.SubmitAnswerBatch)
		takerAPI.POST("/complete", handlers.Attempt.CompleteAttempt)
		takerAPI.POST("/abandon", handlers.Attempt.AbandonAttempt)
		takerAPI.GET("/result", handlers.Attempt.GetAttemptResult)
		takerAPI.POST("/activity", activityLimiter.Middleware(), handlers.Attempt.ReportActivity)
	}

	// ─── 2. WebSocket Group (WS Auth via query token) ──────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/sessions/:session_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 3. Operator Group (JWT) ───────────────────────────────────────
	operatorAPI := router.Group("/api/v1/operator")
	operatorAPI.Use(middleware.RequireOperatorJWT(authService))
	{
		// Session lifecycle
		operatorAPI.POST("/sessions", handlers.Session.CreateSession)
		operatorAPI.GET("/sessions", handlers.Session.ListSessions)
		operatorAPI.POST("/sessions/status", handlers.Session.BatchUpdateSessionStatus)
		operatorAPI.GET("/sessions/:session_id", handlers.Session.GetSession)
		operatorAPI.PUT("/sessions/:session_id", handlers.Session.UpdateSession)
		operatorAPI.PATCH("/sessions/:session_id/status", handlers.Session.UpdateSessionStatus)
		operatorAPI.GET("/sessions/:session_id/stats", handlers.Session.GetSessionStats)

		// Live monitor
		operatorAPI.GET("/sessions/:session_id/attempts", handlers.Session.ListSessionAttempts)
		operatorAPI.GET("/attempts/:attempt_id/activity", handlers.Session.ListAttemptActivity)
		operatorAPI.POST("/attempts/:attempt_id/regrade", handlers.Session.RegradeAttempt)

		// Paper previews
		operatorAPI.POST("/previews", handlers.Preview.CreatePreview)
		operatorAPI.GET("/previews/:token", handlers.Preview.GetPreview)
		operatorAPI.POST("/previews/:token/start", handlers.Preview.StartPreview)
		operatorAPI.POST("/previews/:token/answers", handlers.Preview.SubmitPreviewAnswer)
		operatorAPI.POST("/previews/:token/complete", handlers.Preview.CompletePreview)

		// System metrics (SSE)
		operatorAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
