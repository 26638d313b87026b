package main

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

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/atelier-market/api/internal/handlers"
	"github.com/atelier-market/api/internal/payments"
	"github.com/atelier-market/api/internal/platform/auth"
	"github.com/atelier-market/api/internal/platform/config"
	pfirestore "github.com/atelier-market/api/internal/platform/firestore"
	"github.com/atelier-market/api/internal/platform/jobs"
	"github.com/atelier-market/api/internal/platform/observability"
	"github.com/atelier-market/api/internal/platform/secrets"
	firestoreRepo "github.com/atelier-market/api/internal/repositories/firestore"
	"github.com/atelier-market/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	storeRepo, err := firestoreRepo.NewStoreRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise store repository", zap.Error(err))
	}
	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	billboardRepo, err := firestoreRepo.NewBillboardRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise billboard repository", zap.Error(err))
	}
	categoryRepo, err := firestoreRepo.NewCategoryRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise category repository", zap.Error(err))
	}
	sizeRepo, err := firestoreRepo.NewSizeRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise size repository", zap.Error(err))
	}
	colorRepo, err := firestoreRepo.NewColorRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise color repository", zap.Error(err))
	}

	var orderEvents services.OrderEventPublisher
	var stockEvents services.StockEventPublisher
	var pubsubClient *pubsub.Client
	if cfg.Events.Enabled {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		orderPublisher, err := jobs.NewPubSubOrderEventPublisher(pubsubClient.Topic(cfg.Events.OrderTopic))
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
		stockPublisher, err := jobs.NewPubSubStockEventPublisher(pubsubClient.Topic(cfg.Events.StockTopic))
		if err != nil {
			logger.Fatal("failed to initialise stock event publisher", zap.Error(err))
		}
		orderEvents = orderPublisher
		stockEvents = stockPublisher
	}
	defer func() {
		if pubsubClient != nil {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}
	}()

	gateway, err := payments.NewVNPayProvider(payments.VNPayConfig{
		BaseURL: cfg.Gateway.BaseURL,
		Version: cfg.Gateway.Version,
		Locale:  cfg.Gateway.Locale,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment gateway", zap.Error(err))
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      orderRepo,
		Products:    productRepo,
		OrderEvents: orderEvents,
		StockEvents: stockEvents,
		Clock:       time.Now,
		Logger:      observability.ServiceLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Orders:             orderService,
		Stores:             storeRepo,
		Gateway:            gateway,
		Secrets:            config.SecretResolverFunc(fetcher.Resolve),
		FallbackHashSecret: cfg.Gateway.FallbackHashSecret,
		Clock:              time.Now,
		Logger:             observability.ServiceLogger(logger.Named("checkout")),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	storeService, err := services.NewStoreService(services.StoreServiceDeps{
		Stores: storeRepo,
		Clock:  time.Now,
		Logger: observability.ServiceLogger(logger.Named("stores")),
	})
	if err != nil {
		logger.Fatal("failed to initialise store service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Stores:     storeRepo,
		Products:   productRepo,
		Billboards: billboardRepo,
		Categories: categoryRepo,
		Sizes:      sizeRepo,
		Colors:     colorRepo,
		Clock:      time.Now,
		Logger:     observability.ServiceLogger(logger.Named("catalog")),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	metricsService, err := services.NewMetricsService(services.MetricsServiceDeps{
		Orders:   orderRepo,
		Products: productRepo,
		Logger:   observability.ServiceLogger(logger.Named("metrics")),
	})
	if err != nil {
		logger.Fatal("failed to initialise metrics service", zap.Error(err))
	}

	storeHandlers := handlers.NewStoreHandlers(authenticator, storeService)
	productHandlers := handlers.NewProductHandlers(authenticator, catalogService)
	catalogHandlers := handlers.NewCatalogHandlers(authenticator, catalogService)
	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService, storeService, catalogService)
	checkoutHandlers := handlers.NewCheckoutHandlers(authenticator, checkoutService)
	overviewHandlers := handlers.NewOverviewHandlers(authenticator, metricsService, storeService)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadinessCheck("firestore", firestoreCheck(firestoreClient)),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithStoreRoutes(storeHandlers.Routes),
		handlers.WithCatalogRoutes(func(r chi.Router) {
			productHandlers.Routes(r)
			catalogHandlers.Routes(r)
		}),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithOverviewRoutes(overviewHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("atelier-market api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func firestoreCheck(client *firestore.Client) handlers.ReadinessCheck {
	return func(ctx context.Context) error {
		checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
		defer cancel()
		iter := client.Collections(checkCtx)
		if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
			return err
		}
		return nil
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
	}
	if project := strings.TrimSpace(os.Getenv("API_SECRET_PROJECT_ID")); project != "" {
		opts = append(opts, secrets.WithProject(project))
	} else if project := strings.TrimSpace(os.Getenv("API_FIREBASE_PROJECT_ID")); project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if path := strings.TrimSpace(os.Getenv("API_SECRET_FALLBACK_FILE")); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if credentials := strings.TrimSpace(os.Getenv("API_FIREBASE_CREDENTIALS_FILE")); credentials != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return secrets.NewFetcher(ctx, opts...)
}
