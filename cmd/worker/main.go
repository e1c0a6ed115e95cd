package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oscar-duarte/sifen-worker/internal/config"
	"github.com/oscar-duarte/sifen-worker/internal/domain/service"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/database/postgres"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/http/handler"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/http/server"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/messaging/rabbitmq"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/cancelevent"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/credential"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/qr"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/signer"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/soapclient"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/validator"
	"github.com/oscar-duarte/sifen-worker/pkg/database"
	"github.com/oscar-duarte/sifen-worker/pkg/logger"
)

func newLogger(backend string) logger.Logger {
	if backend == "logrus" {
		return logger.NewLogrusLogger()
	}
	return logger.NewZapLogger()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.InitConfig()
	if err != nil {
		// logger is not yet available; this is a startup-fatal ConfigError.
		os.Exit(1)
	}

	log := newLogger(cfg.LoggerBackend)
	log.Info("starting document lifecycle worker", logger.F("env", cfg.Env))

	db, err := database.InitDatabase(cfg.GetDatabaseDSN(), cfg.Env)
	if err != nil {
		log.Error("failed to connect to database", logger.F("error", err.Error()))
		os.Exit(1)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	} else {
		log.Error("failed to obtain underlying sql.DB for shutdown", logger.F("error", err.Error()))
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Error("failed to connect to broker", logger.F("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		log.Error("failed to open broker channel", logger.F("error", err.Error()))
		os.Exit(1)
	}
	defer channel.Close()

	topology := rabbitmq.Topology{
		MainQueue:       cfg.MainQueue,
		DelayQueue:      cfg.DelayQueue,
		DLXExchange:     cfg.DLXExchange,
		DelayRoutingKey: cfg.DelayRoutingKey,
		DelayTTLMs:      cfg.DelayTTLMs,
		PrefetchCount:   1,
	}
	if err := rabbitmq.Declare(channel, topology); err != nil {
		log.Error("failed to declare broker topology", logger.F("error", err.Error()))
		os.Exit(1)
	}

	xsdValidator, err := validator.NewXMLValidator(cfg.SchemasDir)
	if err != nil {
		log.Error("failed to initialize schema validator", logger.F("error", err.Error()))
		os.Exit(1)
	}

	store := postgres.NewStore(db)
	scheduler := rabbitmq.NewScheduler(channel, cfg.DelayQueue)
	materializer := credential.NewMaterializer()
	xmlSigner := signer.NewSigner(log)
	qrGenerator := qr.NewGenerator()
	cancelBuilder := cancelevent.NewBuilder(xmlSigner)
	soapClient := soapclient.NewClient(time.Duration(cfg.HTTPTimeoutSeconds)*time.Second, materializer)

	dispatcher := service.NewDispatcher(
		store,
		scheduler,
		materializer,
		xmlSigner,
		qrGenerator,
		cancelBuilder,
		soapClient,
		xsdValidator,
		service.Endpoints{
			SubmitURL:       cfg.SifenSubmitURL,
			QueryURL:        cfg.SifenQueryURL,
			EventURL:        cfg.SifenEventURL,
			QRBaseURL:       cfg.SifenQRBaseURL,
			MaxPollAttempts: cfg.MaxPollAttempts,
		},
		log,
	)

	consumer := rabbitmq.NewConsumer(channel, cfg.MainQueue, dispatcher, log)
	publisher := rabbitmq.NewPublisher(channel, cfg.MainQueue)
	publisherHandler := handler.NewPublisherHandler(publisher)
	httpServer := server.NewServer(publisherHandler, log, cfg.Port)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("consumer stopped unexpectedly", logger.F("error", err.Error()))
		}
	}()

	go func() {
		defer wg.Done()
		if err := httpServer.Start(ctx); err != nil {
			log.Error("publisher HTTP shim stopped unexpectedly", logger.F("error", err.Error()))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, draining in-flight work")
	wg.Wait()
	log.Info("worker shutdown complete")
}
