package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookline/config"
	"bookline/cron"
	"bookline/database"
	appointmentRepo "bookline/database/repository/appointment"
	catalogRepo "bookline/database/repository/catalog"
	customerRepo "bookline/database/repository/customer"
	tenantRepo "bookline/database/repository/tenant"
	"bookline/handlers"
	"bookline/middleware"
	"bookline/models"
	"bookline/routes"
	"bookline/services/availability"
	"bookline/services/booking"
	"bookline/services/conversation"
	"bookline/services/correlation"
	"bookline/services/delivery"
	"bookline/services/handoff"
	"bookline/services/ops"
	"bookline/services/session"
	tenantService "bookline/services/tenant"
	"bookline/utils"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// adminNotifier delivers escalation alerts to the operator's own chat
// number, using a resolved tenant context for channel credentials.
type adminNotifier struct {
	client   delivery.ChannelClient
	registry tenantService.Registry
	number   string
	tenantID string
}

func (n *adminNotifier) NotifyAdmin(ctx context.Context, text string) error {
	if n.number == "" || n.tenantID == "" {
		return nil
	}
	tenant, err := n.registry.Refresh(ctx, n.tenantID)
	if err != nil {
		return err
	}
	_, err = n.client.Send(ctx, tenant, n.number, models.TextPayload(text))
	return err
}

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitTenantCache()
	utils.InitOpsCache()
	stripe.Key = config.AppConfig.StripeKey

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// Repositories.
	tenantsRepo := tenantRepo.NewMongoTenantRepo()
	customers := customerRepo.NewMongoCustomerRepo()
	catalog := catalogRepo.NewMongoCatalogRepo()
	appointments := appointmentRepo.NewMongoAppointmentRepo()

	// In-process state.
	sessions := session.NewMemoryStore()
	correlations := correlation.NewStore(correlation.DefaultTTL)

	// Tenant resolution, with a redis cache in front of mongo.
	registry := &tenantService.DefaultRegistry{
		Repo:             tenantsRepo,
		Cache:            utils.GetTenantCacheClient(),
		Logger:           logger,
		SingleTenantID:   config.AppConfig.SingleTenantID,
		FallbackTenantID: config.AppConfig.FallbackTenantID,
		CacheTTL:         10 * time.Minute,
	}

	// Outbound delivery: channel client wrapped in the reliability layer.
	channelClient := delivery.NewWhatsAppClient(logger)
	escalator := &ops.DefaultEscalator{
		Dedup:  &ops.RedisDeduper{Client: utils.GetOpsCacheClient()},
		Notify: &adminNotifier{
			client:   channelClient,
			registry: registry,
			number:   config.AppConfig.AdminNotifyNumber,
			tenantID: fallbackTenantID(),
		},
		Logger: logger,
	}
	sender := &delivery.Sender{
		Client:           channelClient,
		Tenants:          registry,
		Escalator:        escalator,
		Correlations:     correlations,
		Logger:           logger,
		ReengageTemplate: config.AppConfig.ReengageTemplate,
		FallbackTemplate: config.AppConfig.FallbackTemplate,
		Locales:          config.TemplateLocalePriority(),
	}

	// Booking pipeline.
	payments := booking.NewStripePaymentLinker(logger, "usd", "")
	transactor := &booking.DefaultTransactor{
		Repo:           appointments,
		Payments:       payments,
		Logger:         logger,
		DepositFixed:   config.AppConfig.DepositFixed,
		DepositPercent: config.AppConfig.DepositPercent,
		GranularityMin: config.AppConfig.SlotGranularityMin,
		BufferMin:      config.AppConfig.SlotBufferMin,
	}

	agentRouter := &handoff.Router{
		Sessions:       sessions,
		Correlations:   correlations,
		Sender:         sender,
		Logger:         logger,
		AgentChannelID: config.AppConfig.AgentChannelID,
	}

	engine := &conversation.Engine{
		Sessions:     sessions,
		Correlations: correlations,
		Customers:    customers,
		Catalog:      catalog,
		Appointments: appointments,
		Slots: &availability.Engine{
			Catalog:        catalog,
			Appointments:   appointments,
			GranularityMin: config.AppConfig.SlotGranularityMin,
			BufferMin:      config.AppConfig.SlotBufferMin,
		},
		Booking:        transactor,
		Payments:       payments,
		Router:         agentRouter,
		Sender:         sender,
		Logger:         logger,
		AgentChannelID: config.AppConfig.AgentChannelID,
		HorizonDays:    config.AppConfig.BookingHorizonDays,
		HoldMinutes:    config.AppConfig.HoldMinutes,
	}
	agentRouter.HomeMenu = engine.SendHomeMenu

	handlers.Tenants = registry
	handlers.Engine = engine
	handlers.Sender = sender

	routes.RegisterWebhookRoutes(router)
	routes.RegisterHealthRoutes(router)

	cron.InitHousekeeping(sessions, correlations)

	srv := &http.Server{
		Addr:    ":" + config.AppConfig.AppPort,
		Handler: router,
	}
	go func() {
		logger.Info("server listening", zap.String("port", config.AppConfig.AppPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}

// fallbackTenantID picks the tenant whose channel credentials carry admin
// notifications.
func fallbackTenantID() string {
	if config.AppConfig.SingleTenantID != "" {
		return config.AppConfig.SingleTenantID
	}
	return config.AppConfig.FallbackTenantID
}
