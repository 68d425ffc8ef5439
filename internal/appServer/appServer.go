// launching the server, postgres, redis, rabbit, kafka and the sweep loop
package appServer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/poro/notify-engine/config"
	"github.com/poro/notify-engine/internal/database"
	"github.com/poro/notify-engine/internal/pkg/channel"
	"github.com/poro/notify-engine/internal/pkg/kafka"
	"github.com/poro/notify-engine/internal/pkg/metrics"
	"github.com/poro/notify-engine/internal/pkg/queue"
	"github.com/poro/notify-engine/internal/pkg/render"
	"github.com/poro/notify-engine/internal/pkg/throttle"
	"github.com/poro/notify-engine/internal/service"
	"github.com/poro/notify-engine/internal/transport"
	"github.com/poro/notify-engine/internal/worker"
	"github.com/poro/notify-engine/pkg/postgres"
	pkgredis "github.com/poro/notify-engine/pkg/redis"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {
	logrus.SetFormatter(new(logrus.JSONFormatter))

	db, err := postgres.NewPostgresDB(&cfg.Postgres)
	if err != nil {
		logrus.Fatalf("Failed to connect to PostgreSQL: %s", err.Error())
	}
	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %s", err.Error())
	}

	redisClient := pkgredis.NewRedisClient(&cfg.Redis)

	rabbitURL := cfg.Rabbit.URL
	if rabbitURL == "" {
		rabbitURL = fmt.Sprintf("amqp://%s:%s@%s:%d/",
			cfg.Rabbit.Username, cfg.Rabbit.Password, cfg.Rabbit.Host, cfg.Rabbit.Port)
	}
	rabbitConn, err := amqp.Dial(rabbitURL)
	if err != nil {
		logrus.Fatalf("Failed to connect to RabbitMQ: %s", err.Error())
	}
	defer rabbitConn.Close()

	inApp, err := channel.NewInAppAdapter(rabbitConn, cfg.Rabbit.ExchangeName, cfg.Channels.SendTimeout)
	if err != nil {
		logrus.Fatalf("Failed to set up in-app adapter: %s", err.Error())
	}
	defer inApp.Close()

	adapters := channel.Registry{
		inApp.Channel(): inApp,
	}
	email := channel.NewEmailAdapter(
		cfg.Channels.SMTP.Host, cfg.Channels.SMTP.Port,
		cfg.Channels.SMTP.Username, cfg.Channels.SMTP.Password,
		cfg.Channels.SMTP.From, cfg.Channels.SendTimeout,
	)
	adapters[email.Channel()] = email
	push := channel.NewPushAdapter(cfg.Channels.Push.URL, cfg.Channels.Push.APIKey, cfg.Channels.SendTimeout)
	adapters[push.Channel()] = push
	sms := channel.NewSMSAdapter(cfg.Channels.SMS.URL, cfg.Channels.SMS.APIKey, cfg.Channels.SendTimeout)
	adapters[sms.Channel()] = sms

	producer := kafka.NewNopProducer()
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	defer producer.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	repo := database.NewRepository(db)
	templateCache := database.NewTemplateCache(redisClient, cfg.App.TemplateCacheTTL)
	templates := service.NewTemplateUseCase(repo.Templates, templateCache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := templates.SeedDefaults(ctx); err != nil {
		logrus.Fatalf("Failed to seed templates: %s", err.Error())
	}

	notifications := service.NewNotificationUseCase(
		repo.Notifications,
		repo.Preferences,
		templates,
		render.NewRenderer(),
		throttle.NewGuard(redisClient),
		queue.NewScheduleQueue(redisClient),
		adapters,
		producer,
		m,
		cfg.Channels.SendTimeout,
	)

	policy := worker.NewRetryPolicy(cfg.Sweep.RetryBaseDelay, cfg.Sweep.RetryMaxDelay)
	sweeper := worker.NewSweeper(
		notifications, templates,
		queue.NewScheduleQueue(redisClient),
		repo.Notifications,
		policy, m,
		cfg.Sweep.BatchSize, cfg.Sweep.Concurrency,
	)
	if err := sweeper.Start(ctx, cfg.Sweep.DueInterval, cfg.Sweep.RetryInterval); err != nil {
		logrus.Fatalf("Failed to start sweeper: %s", err.Error())
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(cfg.Server.Mode, notifications, templates, registry)); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")
	cancel()

	if err := srv.Shutdown(context.Background()); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
