package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zllovesuki/custbridge/broker"
	"github.com/zllovesuki/custbridge/config"
	"github.com/zllovesuki/custbridge/task"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
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

	if err := config.LoadDotFile(dotFile); err != nil {
		logger.Warn("Continuing without dotfile",
			zap.Error(err),
		)
	}

	conf, err := config.Load(environment, config.TargetWorker)
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
			"component": "worker",
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

	amqpBroker, err := broker.NewAMQPBroker(conf.AMQPURI)
	if err != nil {
		logger.Fatal("Cannot connect to Broker",
			zap.Error(err),
		)
	}
	defer amqpBroker.Close()

	auditTask, err := task.NewAuditTask(task.AuditOptions{
		Consumer: amqpBroker,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize AuditTask",
			zap.Error(err),
		)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := auditTask.HandleEvents(ctx); err != nil {
		logger.Fatal("Cannot start AuditTask",
			zap.Error(err),
		)
	}
	logger.Info("Worker is consuming customer events",
		zap.String("queue", task.MirrorAuditQueue),
	)

	<-c
	logger.Info("Shutting down worker",
		zap.Any("stats", auditTask.Stats()),
	)
}
