// Package server wires the upload API: configuration, logging, the catalog
// database, object storage and the HTTP and gRPC health servers.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/properbooky/internal/logging"
	"github.com/dmitrijs2005/properbooky/internal/queue"
	"github.com/dmitrijs2005/properbooky/internal/server/auth"
	"github.com/dmitrijs2005/properbooky/internal/server/config"
	"github.com/dmitrijs2005/properbooky/internal/server/httpapi"
	"github.com/dmitrijs2005/properbooky/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/properbooky/internal/server/services"
	"github.com/dmitrijs2005/properbooky/internal/storage"
	"github.com/dmitrijs2005/properbooky/internal/uploader"
	"github.com/dmitrijs2005/properbooky/internal/validator"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/properbooky/internal/server/grpc"
)

const feedLimit = 100

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	httpServer *httpapi.Server
	grpcServer *gs.GRPCServer
}

// openDB is a seam for tests.
var openDB = sql.Open

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogMode, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := openDB("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migrate error: %w", err)
	}

	transport, err := storage.NewS3Transport(ctx, storage.S3Config{
		AccessKey:     c.S3RootUser,
		SecretKey:     c.S3RootPassword,
		Bucket:        c.S3Bucket,
		Region:        c.S3Region,
		BaseEndpoint:  c.S3BaseEndpoint,
		PublicBaseURL: c.S3PublicBaseURL,
	}, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	catalog := services.NewCatalogService(db, rm)
	v := validator.New(validator.WithMaxSize(c.MaxFileSize), validator.WithStrictEPUB(c.StrictEPUB))
	sessions := httpapi.NewSessions(newSessionFactory(c, logger, transport, catalog))

	handler := httpapi.NewHandler(sessions, v, catalog, logger)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		httpServer: httpapi.NewServer(c.EndpointAddrHTTP, handler.Router([]byte(c.SecretKey)), logger),
		grpcServer: gs.NewGRPCServer(c.EndpointAddrGRPC, logger, map[string]gs.Probe{
			"catalog": db.PingContext,
			"storage": transport.Ping,
		}),
	}, nil
}

// newSessionFactory builds the per-owner queue, notification feed and
// orchestrator used by the HTTP API.
func newSessionFactory(c *config.Config, logger logging.Logger, tr storage.Transport, reg uploader.Registrar) httpapi.SessionFactory {
	var optimizer storage.Optimizer = storage.NopOptimizer{}
	if c.OptimizePDF {
		optimizer = storage.PDFOptimizer{}
	}

	return func(ownerID string) *httpapi.Session {
		l := logger.With("owner", ownerID)
		store := queue.NewStore()
		feed := uploader.NewFeed(feedLimit)

		orch := uploader.New(store, tr, auth.ContextResolver{},
			uploader.WithRegistrar(reg),
			uploader.WithOptimizer(optimizer),
			uploader.WithItemTimeout(c.ItemTimeout),
			uploader.WithNotifier(uploader.MultiNotifier{feed, uploader.NewLogNotifier(l)}),
			uploader.WithLogger(l),
		)
		return &httpapi.Session{Store: store, Orchestrator: orch, Feed: feed}
	}
}

// Run serves HTTP and gRPC until a signal arrives or either server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.httpServer.Run(gctx) })
	g.Go(func() error { return app.grpcServer.Run(gctx) })

	err := g.Wait()

	if cerr := app.db.Close(); cerr != nil {
		app.logger.Warn(ctx, "db close", "error", cerr)
	}
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}

	app.logger.Info(ctx, "App stopped")
	return err
}
