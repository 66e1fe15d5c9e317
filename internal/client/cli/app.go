package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/properbooky/internal/logging"
	"github.com/dmitrijs2005/properbooky/internal/queue"
	"github.com/dmitrijs2005/properbooky/internal/server/auth"
	"github.com/dmitrijs2005/properbooky/internal/server/config"
	"github.com/dmitrijs2005/properbooky/internal/server/models"
	"github.com/dmitrijs2005/properbooky/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/properbooky/internal/server/services"
	"github.com/dmitrijs2005/properbooky/internal/storage"
	"github.com/dmitrijs2005/properbooky/internal/uploader"
	"github.com/dmitrijs2005/properbooky/internal/validator"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// catalog is what the CLI needs from the book catalog.
type catalog interface {
	uploader.Registrar
	ListBooks(ctx context.Context, ownerID string) ([]models.Book, error)
}

type App struct {
	store        *queue.Store
	orchestrator *uploader.Orchestrator
	validator    *validator.Validator
	tokens       *auth.TokenResolver
	catalog      catalog
	logger       logging.Logger
	out          io.Writer
	closeFn      func() error
}

// openCatalog is a seam for tests; it connects to the catalog database and
// applies migrations.
var openCatalog = func(ctx context.Context, dsn string) (catalog, func() error, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return services.NewCatalogService(db, rm), db.Close, nil
}

// NewApp wires the in-process pipeline. A missing catalog database is not
// fatal: uploads then complete without catalog registration.
func NewApp(ctx context.Context, c *config.Config, out io.Writer) (*App, error) {
	logger, err := logging.New(c.LogMode, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
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
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	a := newApp(c, transport, logger, out)

	cat, closeFn, err := openCatalog(ctx, c.DatabaseDSN)
	if err != nil {
		logger.Warn(ctx, "catalog unavailable, uploads will not be registered", "error", err)
		return a, nil
	}
	a.catalog = cat
	a.closeFn = closeFn
	a.orchestrator = a.newOrchestrator(c, transport, cat)
	return a, nil
}

func newApp(c *config.Config, tr storage.Transport, logger logging.Logger, out io.Writer) *App {
	a := &App{
		store:     queue.NewStore(),
		validator: validator.New(validator.WithMaxSize(c.MaxFileSize), validator.WithStrictEPUB(c.StrictEPUB)),
		tokens:    auth.NewTokenResolver([]byte(c.SecretKey)),
		logger:    logger,
		out:       out,
	}
	a.orchestrator = a.newOrchestrator(c, tr, nil)
	return a
}

func (a *App) newOrchestrator(c *config.Config, tr storage.Transport, reg uploader.Registrar) *uploader.Orchestrator {
	var optimizer storage.Optimizer = storage.NopOptimizer{}
	if c.OptimizePDF {
		optimizer = storage.PDFOptimizer{}
	}
	opts := []uploader.Option{
		uploader.WithOptimizer(optimizer),
		uploader.WithItemTimeout(c.ItemTimeout),
		uploader.WithNotifier(newTerminalNotifier(a.out)),
		uploader.WithLogger(a.logger),
	}
	if reg != nil {
		opts = append(opts, uploader.WithRegistrar(reg))
	}
	return uploader.New(a.store, tr, a.tokens, opts...)
}

func (a *App) hasToken() bool {
	return a.tokens.HasToken()
}

func (a *App) getStatus() string {
	if !a.hasToken() {
		return ""
	}
	return fmt.Sprintf(" (%d queued)", a.queuedCount())
}

// Run starts the REPL on stdin and blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	defer func() {
		if a.closeFn != nil {
			_ = a.closeFn()
		}
	}()

	printlnFn("Welcome to ProperBooky uploader (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))
}
