package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hypecast/kolport/internal/config"
	"github.com/hypecast/kolport/internal/service"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	AuthService    *service.AuthService
	KolJobService  *service.KolJobService
	InviteService  *service.InviteService
	PaymentService *service.PaymentService
	Scheduler      *service.Scheduler

	amqpConn *amqp.Connection
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize notification transports
	amqpConn, err := amqp.Dial(cfg.Mailer.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}
	mailer, err := service.NewMailer(&cfg.Mailer, amqpConn, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}
	adminPush, err := service.NewAdminPush(&cfg.AdminPush, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize admin push: %w", err)
	}

	// Initialize services
	authService := service.NewAuthService(logger, cfg.Auth.TOTPSecret)
	kolJobService := service.NewKolJobService(db, mailer, adminPush, logger)
	inviteService := service.NewInviteService(db, adminPush, logger)
	paymentService := service.NewPaymentService(db, &cfg.Payment, mailer, adminPush, logger)
	scheduler := service.NewScheduler(&cfg.Scheduler, logger, paymentService, adminPush)

	// Create router
	router := gin.New()

	// Create server
	srv := &Server{
		Config:         cfg,
		DB:             db,
		Router:         router,
		Logger:         logger,
		AuthService:    authService,
		KolJobService:  kolJobService,
		InviteService:  inviteService,
		PaymentService: paymentService,
		Scheduler:      scheduler,
		amqpConn:       amqpConn,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Auth-Token")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// API routes
	api := s.Router.Group("/api/v1")
	{
		// KOL-facing routes
		invites := api.Group("/invites")
		{
			invites.POST("/:id/join", s.handleJoinJob)
			invites.POST("/:id/reject", s.handleRejectInvite)
		}

		kolJobs := api.Group("/kol-jobs")
		{
			kolJobs.POST("/:id/submit", s.handleSubmitPost)
		}

		api.POST("/payment-requests", s.handleCreatePaymentRequest)
		api.GET("/kols/:id", s.handleGetKol)

		// Admin routes
		admin := api.Group("/admin", s.AuthService.AdminMiddleware())
		{
			admin.POST("/kol-jobs/:id/accept", s.handleAcceptPost)
			admin.POST("/kol-jobs/:id/reject", s.handleRejectPost)
			admin.POST("/payment-requests/:id/accept", s.handleAcceptPaymentRequest)
			admin.POST("/payment-requests/:id/reject", s.handleRejectPaymentRequest)
		}
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	s.Scheduler.Stop()

	if s.amqpConn != nil {
		s.amqpConn.Close()
	}

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
