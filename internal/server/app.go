// Package server wires configuration, storage, notification and the HTTP
// API together and runs them until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/accountkeeper/internal/keylock"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/auth"
	"github.com/dmitrijs2005/accountkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/accountkeeper/internal/server/config"
	"github.com/dmitrijs2005/accountkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/accountkeeper/internal/server/notify"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accountkeeper/internal/server/services"

	httpx "github.com/dmitrijs2005/accountkeeper/internal/server/http"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	logCloser  io.Closer
	db         *sql.DB
	metrics    *metrics.Prometheus
	dispatcher *notify.Dispatcher
	router     *httpx.Router
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, logCloser, err := logging.New(c.LogLevel, c.LogFile)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: c, logger: logger, logCloser: logCloser}
	if err := app.init(ctx); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("db migration error: %w", err)
	}

	app.metrics = metrics.NewPrometheus()

	s3, err := blobstore.NewS3Store(ctx, blobstore.S3Options{
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
	})
	if err != nil {
		return fmt.Errorf("object storage init error: %w", err)
	}
	store := blobstore.Instrument(s3, app.metrics)

	var publisher notify.Publisher
	if c.SNSTopicARN != "" {
		publisher, err = notify.NewSNSPublisher(ctx, notify.SNSOptions{
			TopicARN:     c.SNSTopicARN,
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.SNSBaseEndpoint,
		})
		if err != nil {
			return fmt.Errorf("notification init error: %w", err)
		}
	} else {
		app.logger.Warn(ctx, "no notification topic configured, verification links will only be logged")
		publisher = notify.NewLogPublisher(app.logger)
	}
	app.dispatcher = notify.NewDispatcher(publisher, c.NotifyTimeout, app.logger, app.metrics)

	hasher, err := auth.NewPasswordHasher(c.BcryptCost)
	if err != nil {
		return fmt.Errorf("password hasher init error: %w", err)
	}

	opts := []services.Option{services.WithLogger(app.logger), services.WithMetrics(app.metrics)}
	locks := keylock.New()
	issuer := services.NewTokenIssuer(c.VerificationTokenTTL, c.VerificationBaseURL)

	credentials := services.NewCredentialService(db, rm, hasher, opts...)
	accounts := services.NewAccountService(db, rm, hasher, issuer, app.dispatcher, locks, opts...)
	verifier := services.NewVerificationService(db, rm, opts...)
	pictures := services.NewAttachmentService(db, rm, store, locks, c.MaxUploadSize, opts...)

	app.router = httpx.NewRouter(httpx.Deps{
		Logger:        app.logger,
		Metrics:       app.metrics,
		Gate:          services.NewAccessGate(credentials),
		Accounts:      accounts,
		Verifier:      verifier,
		Pictures:      pictures,
		DBHealth:      db.PingContext,
		MaxUploadSize: c.MaxUploadSize,
	})
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startServer(ctx context.Context, cancelFunc context.CancelFunc, s *httpx.Server) {
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves the API, and the metrics endpoint when configured, until ctx is
// cancelled or a signal arrives. Resources are released before it returns.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startServer(ctx, cancelFunc, httpx.NewServer("api", app.config.EndpointAddrHTTP, app.router, app.logger))
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startServer(ctx, cancelFunc, httpx.NewServer("metrics", app.config.MetricsAddr, app.metrics.Handler(), app.logger))
		}()
	}

	wg.Wait()

	app.logger.Info(context.Background(), "Stopping app...")
	app.close()
}

func (app *App) close() {
	if app.dispatcher != nil {
		app.dispatcher.Close()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "db close error", "error", err)
		}
	}
	if app.logCloser != nil {
		_ = app.logCloser.Close()
	}
}
