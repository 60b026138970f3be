package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zllovesuki/custbridge/broker"
	"github.com/zllovesuki/custbridge/config"
	"github.com/zllovesuki/custbridge/crm"
	"github.com/zllovesuki/custbridge/customer"
	"github.com/zllovesuki/custbridge/db"
	resp "github.com/zllovesuki/custbridge/response"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v7"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var err error

	// Determine running environment and initialize structural logger
	environment, dotFile := config.Environ()
	if environment == config.EnvProduction {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))
	defer logger.Sync()

	// Variables from the process environment are enough, the dotfile is optional
	if err := config.LoadDotFile(dotFile); err != nil {
		logger.Warn("Continuing without dotfile",
			zap.Error(err),
		)
	}

	conf, err := config.Load(environment, config.TargetAPI)
	if err != nil {
		logger.Fatal("Cannot load configurations",
			zap.Error(err),
		)
	}

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         conf.SentryDSN,
		Environment: string(environment),
		Debug:       environment == config.EnvDevelopment,
	}); err != nil {
		logger.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer sentry.Flush(time.Second * 2)

	// Attach sentry to zap so we can do automatic error capturing
	sentryCfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "api",
		},
	}
	core, err := zapsentry.NewCore(sentryCfg, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	if err != nil {
		logger.Warn("Cannot attach sentry to logger",
			zap.Error(err),
		)
	} else {
		logger = zapsentry.AttachCoreToLogger(core, logger)
	}

	ctx := context.Background()

	store, err := newStore(ctx, conf, logger)
	if err != nil {
		logger.Fatal("Cannot initialize customer store",
			zap.String("backend", string(conf.Backend)),
			zap.Error(err),
		)
	}

	syncerOpts := customer.SyncerOptions{
		Store:  store,
		Logger: logger,
	}

	if conf.CRM.Enabled() {
		var cache crm.TokenCache
		if conf.RedisURI != "" {
			rdb := redis.NewUniversalClient(&redis.UniversalOptions{
				Addrs:    []string{conf.RedisURI},
				Password: conf.RedisPassword,
				DB:       0,
			})
			if _, err := rdb.Ping().Result(); err != nil {
				logger.Fatal("Cannot connect to Redis",
					zap.Error(err),
				)
			}
			defer rdb.Close()
			cache = crm.NewRedisCache(rdb, crm.DefaultRedisKey)
		}

		httpClient := &http.Client{
			Timeout: conf.CRM.Timeout,
		}

		tokens, err := crm.NewTokenProvider(crm.TokenProviderOptions{
			TokenURL:     conf.CRM.TokenURL,
			ClientID:     conf.CRM.ClientID,
			ClientSecret: conf.CRM.ClientSecret,
			DefaultTTL:   conf.CRM.TokenTTL,
			HTTPClient:   httpClient,
			Cache:        cache,
			Logger:       logger,
		})
		if err != nil {
			logger.Fatal("Cannot initialize CRM token provider",
				zap.Error(err),
			)
		}

		crmClient, err := crm.NewClient(crm.ClientOptions{
			Tokens:     tokens,
			ContactURL: conf.CRM.ContactURL,
			QueryURL:   conf.CRM.QueryURL,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			logger.Fatal("Cannot initialize CRM client",
				zap.Error(err),
			)
		}
		syncerOpts.Contacts = crmClient
	} else {
		logger.Info("CRM integration is not configured, customers will only be stored locally")
	}

	if conf.AMQPURI != "" {
		amqpBroker, err := broker.NewAMQPBroker(conf.AMQPURI)
		if err != nil {
			logger.Fatal("Cannot connect to Broker",
				zap.Error(err),
			)
		}
		defer amqpBroker.Close()
		syncerOpts.Publisher = amqpBroker
	}

	syncer, err := customer.NewSyncer(syncerOpts)
	if err != nil {
		logger.Fatal("Cannot initialize customer Syncer",
			zap.Error(err),
		)
	}

	customerService, err := customer.NewService(customer.Options{
		Syncer: syncer,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Customer Service Router",
			zap.Error(err),
		)
	}

	srv := &http.Server{
		Handler:      newRouter(customerService),
		Addr:         conf.Addr(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("API server listening",
			zap.String("addr", srv.Addr),
			zap.String("backend", string(conf.Backend)),
			zap.Bool("crm", conf.CRM.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server exited",
				zap.Error(err),
			)
		}
	}()

	<-c
	logger.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Cannot gracefully shutdown API server",
			zap.Error(err),
		)
	}
}

func newStore(ctx context.Context, conf *config.Config, logger *zap.Logger) (customer.Store, error) {
	switch conf.Backend {
	case config.BackendDynamoDB:
		client, err := db.NewDynamo(ctx, db.DynamoOptions{
			Endpoint: conf.DynamoEndpoint,
			Region:   conf.DynamoRegion,
		})
		if err != nil {
			return nil, err
		}
		return customer.NewDynamoStore(ctx, customer.DynamoStoreOptions{
			Client: client,
			Table:  conf.DynamoTable,
			Logger: logger,
		})
	case config.BackendPostgres:
		gdb, err := db.New(db.Options{
			URI:    conf.PostgresURI,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		return customer.NewManager(logger, gdb)
	default:
		return nil, fmt.Errorf("unknown store backend %q", conf.Backend)
	}
}

func newRouter(customerService *customer.Service) http.Handler {
	rootRouter := chi.NewRouter()
	rootRouter.Use(middleware.RequestID)
	rootRouter.Use(middleware.RealIP)
	rootRouter.Use(middleware.Recoverer)
	rootRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	rootRouter.NotFound(func(w http.ResponseWriter, r *http.Request) {
		resp.WriteError(w, r, resp.ErrNotFound())
	})
	rootRouter.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		resp.WriteError(w, r, resp.ErrMethodNotAllowed())
	})

	rootRouter.Get("/", health)
	rootRouter.Get("/api/health", health)
	rootRouter.Mount("/api/customers", customerService.Router())
	customerService.MountLegacy(rootRouter)

	return rootRouter
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "API is working!")
}
