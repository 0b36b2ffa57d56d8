package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/polystore/polystore-console/internal/app"
	"github.com/polystore/polystore-console/internal/binding"
	"github.com/polystore/polystore-console/internal/observability"
	"github.com/polystore/polystore-console/internal/permissions"
	"github.com/polystore/polystore-console/internal/platform/cache"
	"github.com/polystore/polystore-console/internal/platform/db"
	"github.com/polystore/polystore-console/internal/platform/gateway"
	"github.com/polystore/polystore-console/internal/rbac"
	"github.com/polystore/polystore-console/internal/roles"
	"github.com/polystore/polystore-console/internal/shared"
	"github.com/polystore/polystore-console/internal/users"
)

// userDirectory adapts the user service for permission resolution.
type userDirectory struct {
	users *users.Service
}

func (d userDirectory) FindRoleName(ctx context.Context, userID int64) (string, error) {
	user, err := d.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// roleDirectory adapts the role service for permission resolution.
type roleDirectory struct {
	roles *roles.Service
}

func (d roleDirectory) FindRoleID(ctx context.Context, name string) (int64, error) {
	role, err := d.roles.GetRoleByName(ctx, name)
	if err != nil {
		return 0, err
	}
	return role.ID, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	var (
		pool        *pgxpool.Pool
		userRepo    users.RepositoryPort
		roleRepo    roles.RepositoryPort
		catalogPort permissions.CatalogPort
		bindRepo    binding.RepositoryPort
		audit       users.AuditPort
	)

	if cfg.RemoteMode() {
		client := gateway.NewClient(cfg.PlatformAPIURL, cfg.PlatformAPITimeout, logger)
		userRepo = users.NewGatewayRepository(client)
		roleRepo = roles.NewGatewayRepository(client)
		catalogPort = permissions.NewGatewayCatalog(client)
		bindRepo = binding.NewGatewayRepository(client)
		audit = gateway.NewAuditSink(client)
		logger.Info("stores backed by platform api", slog.String("url", cfg.PlatformAPIURL))
	} else {
		pool, err = db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		userRepo = users.NewRepository(pool)
		roleRepo = roles.NewRepository(pool)
		catalogPort = permissions.NewRepository(pool)
		bindRepo = binding.NewRepository(pool)
		audit = shared.NewAuditLogger(pool)
	}

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("catalog cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	userService := users.NewService(userRepo, audit)
	roleService := roles.NewService(roleRepo, audit)
	catalogService := permissions.NewService(catalogPort, redisClient, cfg.CatalogCacheTTL, logger)
	bindingService := binding.NewService(bindRepo, audit)

	rbacService := rbac.NewService(userDirectory{users: userService}, roleDirectory{roles: roleService}, bindingService)
	guard := rbac.Middleware{Service: rbacService, Logger: logger}

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		UsersHandler:       users.NewHandler(logger, userService, guard),
		RolesHandler:       roles.NewHandler(logger, roleService, guard),
		PermissionsHandler: permissions.NewHandler(logger, catalogService, guard),
		BindingHandler:     binding.NewHandler(logger, bindingService, guard),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("console api listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("console api stopped")
}
