package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-inbox/internal/api"
	"whatsapp-inbox/internal/config"
	"whatsapp-inbox/internal/database"
	"whatsapp-inbox/internal/events"
	"whatsapp-inbox/internal/logger"
	"whatsapp-inbox/internal/middleware"
	"whatsapp-inbox/internal/outbound"
	"whatsapp-inbox/internal/tenant"
	"whatsapp-inbox/internal/webhook"
	"whatsapp-inbox/internal/whatsapp"
	"whatsapp-inbox/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	if cfg.VerifyToken == "" {
		log.Warn().Msg("VERIFY_TOKEN is empty; webhook verification will always fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	store := database.NewStore(db)

	resolver, err := tenant.New(cfg.TenantResolver, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid tenant resolver")
	}

	hub := ws.NewHub()
	go hub.Run(ctx)
	notifiers := webhook.Notifiers{hub}
	sendNotifiers := outbound.Notifiers{hub}

	if cfg.AMQPURL != "" {
		publisher, err := events.New(ctx, events.Options{
			URL:           cfg.AMQPURL,
			Exchange:      cfg.AMQPExchange,
			RetryAttempts: 5,
			RetryDelay:    time.Second,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect event publisher")
		}
		defer publisher.Close()
		go publisher.Run(ctx)
		notifiers = append(notifiers, publisher)
		sendNotifiers = append(sendNotifiers, publisher)
	}

	whatsappClient := whatsapp.NewClient(cfg)
	sender := outbound.NewSender(store, whatsappClient, sendNotifiers)

	webhookHandler := webhook.NewHandler(cfg, webhook.NewProcessor(store, resolver, notifiers))
	profileHandler := api.NewProfileHandler(store)
	contactHandler := api.NewContactHandler(store, cfg.DefaultCountryCode)
	messageHandler := api.NewMessageHandler(store, sender)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger("/health"), middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Webhook Routes
	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook", webhookHandler.HandleMessage)

	// Dashboard API Routes
	apiGroup := r.Group("/api", middleware.Auth(cfg.JWTSecret, cfg.JWTAudience))
	{
		apiGroup.GET("/profile", profileHandler.GetProfile)
		apiGroup.PUT("/profile/whatsapp", profileHandler.UpdateWhatsAppConfig)

		apiGroup.GET("/contacts", contactHandler.GetContacts)
		apiGroup.POST("/contacts", contactHandler.CreateContact)
		apiGroup.POST("/contacts/import", contactHandler.ImportContacts)
		apiGroup.GET("/contacts/export", contactHandler.ExportContacts)
		apiGroup.PUT("/contacts/:id", contactHandler.UpdateContact)

		apiGroup.GET("/contacts/:id/messages", messageHandler.GetMessages)
		apiGroup.POST("/contacts/:id/messages", messageHandler.SendMessage)

		apiGroup.GET("/ws", func(c *gin.Context) {
			hub.ServeWs(middleware.UserID(c), c.Writer, c.Request)
		})
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to run server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
