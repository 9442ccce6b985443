package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/FanzCEO/GirlFanz-sub003/domain/repository"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/cache"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/clients/platform"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/configuration"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/logger"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/media"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/metrics"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/persistence"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/pubsub"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/realtime"
	"github.com/FanzCEO/GirlFanz-sub003/infrastructure/servicebus"
	httpHandler "github.com/FanzCEO/GirlFanz-sub003/interfaces/http"
	"github.com/FanzCEO/GirlFanz-sub003/server"
	"github.com/FanzCEO/GirlFanz-sub003/usecase"
)

func recoverPanic() {
	if r := recover(); r != nil {
		logger.GetLogger().WithError(fmt.Errorf("panic: %v", r)).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// OS env keeps precedence over both files.
	configuration.LoadEnvFromFile("config.env", ".env")
	app := configuration.C.App
	dist := configuration.C.Distribution

	psqlDb, err := persistence.NewPostgreSQLDB()
	if err != nil {
		logger.GetLogger().WithError(err).Error("PostgreSQL connection failed")
		os.Exit(1)
	}
	defer psqlDb.Close()
	if err := persistence.EnsureDistributionSchema(psqlDb); err != nil {
		logger.GetLogger().WithError(err).Error("failed ensuring distribution schema")
		os.Exit(1)
	}

	redisClient, err := cache.NewCache(
		ctx,
		fmt.Sprintf("%s:%s", configuration.C.RedisClient.Host, configuration.C.RedisClient.Port),
		configuration.C.RedisClient.Username,
		configuration.C.RedisClient.Password,
	)
	var verifiers platform.VerifierStore
	if err != nil {
		logger.GetLogger().Warn("Redis not available - PKCE verifiers kept in memory, scheduled posts will fail until it recovers")
		verifiers = platform.NewMemoryVerifierStore()
	} else {
		verifiers = cache.NewRedisVerifierStore(redisClient)
	}
	defer redisClient.Close()
	queue := cache.NewRedisScheduleQueue(redisClient, dist.ScheduleQueueKey)

	events := newEventPublisher(ctx)
	defer events.Close()

	httpClient := newPlatformHTTPClient()
	var objects media.ObjectAPI
	if s3Client, err := media.NewS3Client(ctx, configuration.C.Media); err != nil {
		logger.GetLogger().WithError(err).Warn("S3 client not available - s3:// media URLs will be rejected")
	} else {
		objects = s3Client
	}

	factory := clients.NewAdapterFactory(platform.Deps{
		HTTPClient:     httpClient,
		Fetcher:        media.NewFetcher(httpClient, objects),
		Queue:          queue,
		Verifiers:      verifiers,
		AnalyticsRate:  dist.AnalyticsRate,
		AnalyticsBurst: dist.AnalyticsBurst,
	}, dist.Platforms)

	hub := realtime.NewDistributionHub()
	distributionUC := usecase.NewDistributionUsecase(usecase.DistributionDeps{
		Adapters:    factory,
		Tokens:      persistence.NewOAuthTokenRepository(psqlDb),
		Records:     persistence.NewDistributionRepository(psqlDb),
		Queue:       queue,
		Events:      events,
		Broadcast:   hub.Broadcast,
		CallTimeout: time.Duration(dist.CallTimeoutSeconds) * time.Second,
	})

	metrics.MustRegister(prometheus.DefaultRegisterer)

	router := server.InitiateRouter(
		app.SecretKey,
		httpHandler.NewDistributionHandler(distributionUC, factory.Supported()),
		httpHandler.NewOAuthHandler(distributionUC),
		hub.Serve,
	)

	// Scheduled post worker
	g.Go(func() error {
		ticker := time.NewTicker(pollInterval(dist.PollIntervalSeconds))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				n, err := distributionUC.ProcessDueScheduled(ctx, now, dist.BatchSize)
				if err != nil {
					logger.GetLogger().WithError(err).Error("processing scheduled posts failed")
				} else if n > 0 {
					logger.GetLogger().WithField("count", n).Info("processed scheduled posts")
				}
			}
		}
	})

	port := app.Port
	logger.GetLogger().WithFields(map[string]interface{}{"port": port, "tls": app.TLSEnabled, "platforms": factory.Supported()}).Info("Starting application")
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		var err error
		if app.TLSEnabled && app.TLSCertFile != "" && app.TLSKeyFile != "" {
			logger.GetLogger().WithFields(map[string]interface{}{"cert": app.TLSCertFile, "key": app.TLSKeyFile}).Info("Serving HTTPS")
			err = httpServer.ListenAndServeTLS(app.TLSCertFile, app.TLSKeyFile)
		} else {
			if app.TLSEnabled {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
			}
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	_ = httpServer.Shutdown(shutdownCtx)

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithError(err).Error("Server returned an error")
		os.Exit(2)
	}
}

// newPlatformHTTPClient is shared by the adapters and the media fetcher. It
// bounds connection setup and the wait for response headers only; uploads and
// downloads run until the caller's context deadline.
func newPlatformHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 2 * time.Minute,
			ExpectContinueTimeout: time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   10,
		},
	}
}

func pollInterval(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = configuration.DefaultPollIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

// newEventPublisher prefers Service Bus when it is configured and falls back to
// Pub/Sub, which itself degrades to a no-op publisher.
func newEventPublisher(ctx context.Context) repository.IDistributionPublisher {
	sb := configuration.C.ServiceBus
	if sb.Namespace != "" || sb.ConnectionString != "" {
		client, err := servicebus.NewServiceBus(sb.Namespace, sb.ConnectionString)
		if err == nil {
			var sender repository.IDistributionPublisher
			if sender, err = servicebus.NewDistributionSender(client, sb.Queue); err == nil {
				logger.GetLogger().WithField("queue", sb.Queue).Info("Distribution events go to Service Bus")
				return sender
			}
			_ = client.Close(ctx)
		}
		logger.GetLogger().WithError(err).Warn("Azure Service Bus not available - trying Pub/Sub")
	}

	pubSubClient, err := pubsub.NewPubSub(ctx, configuration.C.Pubsub.ProjectID)
	if err != nil {
		logger.GetLogger().WithError(err).Warn("PubSub not available - distribution events stay local")
		pubSubClient = nil
	}
	return pubsub.NewDistributionPublisher(pubSubClient, configuration.C.Pubsub.Topic)
}
