package container

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/pagetrail/bookshop-directory/app/db"
	appMiddleware "github.com/pagetrail/bookshop-directory/app/middleware"
	"github.com/pagetrail/bookshop-directory/config"
	"github.com/pagetrail/bookshop-directory/internal/api/auth"
	"github.com/pagetrail/bookshop-directory/internal/api/bookshop"
	"github.com/pagetrail/bookshop-directory/internal/api/directory"
	"github.com/pagetrail/bookshop-directory/internal/api/event"
	"github.com/pagetrail/bookshop-directory/internal/api/feature"
)

// Container holds the application's wired dependencies.
type Container struct {
	Config           *config.Config
	Logger           *slog.Logger
	Pool             *pgxpool.Pool
	AuthHandler      *auth.Handler
	BookshopHandler  *bookshop.Handler
	DirectoryHandler *directory.Handler
	EventHandler     *event.Handler
	FeatureHandler   *feature.Handler
	RateLimiter      *appMiddleware.RateLimiter
	BookshopService  bookshop.Service
	DirectoryService directory.Service
	ShopResolver     appMiddleware.ShopResolver
}

// NewContainer builds repositories, services and handlers on top of the
// database pool.
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		return nil, err
	}

	bookshopRepo := bookshop.NewPostgresRepository(pool, logger)
	eventRepo := event.NewPostgresRepository(pool, logger)
	featureRepo := feature.NewPostgresRepository(pool, logger)
	authRepo := auth.NewPostgresRepository(pool, logger)

	// The directory snapshots cluster passes over the live set; bookshop
	// mutations flush them through the Invalidator seam.
	directoryService := directory.NewService(bookshopRepo, logger)
	bookshopService := bookshop.NewService(bookshopRepo, directoryService, logger)
	authService := auth.NewService(authRepo, cfg, logger)

	return &Container{
		Config:           cfg,
		Logger:           logger,
		Pool:             pool,
		AuthHandler:      auth.NewHandler(authService, logger),
		BookshopHandler:  bookshop.NewHandler(bookshopService, logger),
		DirectoryHandler: directory.NewHandler(directoryService, logger),
		EventHandler:     event.NewHandler(eventRepo, logger),
		FeatureHandler:   feature.NewHandler(featureRepo, logger),
		RateLimiter:      appMiddleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window),
		BookshopService:  bookshopService,
		DirectoryService: directoryService,
		ShopResolver:     bookshopRepo,
	}, nil
}

// Close releases the container's resources.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
