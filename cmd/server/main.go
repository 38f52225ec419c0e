// Copyright 2026 The Congregreat Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command server runs the congregreat API.
//
// Usage:
//
//	server [server|migrate|bootstrap]
//
// server is the default. migrate applies the database schema. bootstrap
// ensures the system admin role exists and grants it to
// BOOTSTRAP_ADMIN_EMAIL.
package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwbwvf/congregreat-server/internal/audit"
	"github.com/jwbwvf/congregreat-server/internal/authz"
	"github.com/jwbwvf/congregreat-server/internal/config"
	"github.com/jwbwvf/congregreat-server/internal/congregation"
	"github.com/jwbwvf/congregreat-server/internal/identity"
	"github.com/jwbwvf/congregreat-server/internal/member"
	"github.com/jwbwvf/congregreat-server/internal/observability/logger"
	"github.com/jwbwvf/congregreat-server/internal/observability/metrics"
	"github.com/jwbwvf/congregreat-server/internal/observability/tracing"
	"github.com/jwbwvf/congregreat-server/internal/store/postgres"
	"github.com/jwbwvf/congregreat-server/internal/token"
	transportHTTP "github.com/jwbwvf/congregreat-server/internal/transport/http"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.InitLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.Observability.ServiceName,
		OTel:        cfg.Observability.Enabled,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	command := "server"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "server":
		err = runServer(ctx, cfg, log)
	case "migrate":
		err = runMigrate(ctx, cfg, log)
	case "bootstrap":
		err = runBootstrap(ctx, cfg, log)
	default:
		err = fmt.Errorf("unknown command %q, expected server, migrate or bootstrap", command)
	}
	stop()

	if err != nil {
		log.Error(command+" failed", logger.Error(err))
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("starting congregreat server", slog.String("version", cfg.Observability.ServiceVersion))

	traces, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.Enabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := traces.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to flush traces", logger.Error(err))
		}
	}()

	authzMetrics, err := metrics.NewAuthz(metrics.New(metrics.Config{
		Enabled: cfg.Observability.Enabled,
	}, cfg.Observability.ServiceName))
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to database")

	svc := newServices(cfg, db, log)

	if cfg.Bootstrap.AdminEmail != "" {
		bctx, span := tracing.Tracer("identity").Start(ctx, "identity.Bootstrap")
		if err := svc.bootstrap.Bootstrap(bctx, bootstrapConfig(cfg)); err != nil {
			tracing.Fail(span, err, "bootstrap failed")
			log.Error("bootstrap failed", logger.Error(err))
		}
		span.End()
	}

	key, err := signingKey(cfg.Token, log)
	if err != nil {
		return err
	}
	issuer, err := token.NewIssuer(key, cfg.Token.Issuer, cfg.Token.Lifetime)
	if err != nil {
		return err
	}

	registration := identity.NewRegistrationService(
		svc.identity,
		svc.members,
		issuer,
		identity.NewLogMailer(log, cfg.Mail.From, cfg.Mail.ConfirmURL),
		cfg.Token.ConfirmationLifetime,
		svc.audit,
		log,
	)

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	handler := transportHTTP.NewHandler(
		svc.identity,
		svc.identity,
		registration,
		issuer,
		svc.resolver,
		svc.roles,
		svc.congregations,
		svc.members,
		svc.audit,
		authzMetrics,
		log,
	)

	router := transportHTTP.NewRouter(handler, rateLimiter, transportHTTP.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		TrustProxy:     cfg.Server.TrustProxy,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rateLimiter.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info("starting http server",
			logger.Component("server"),
			logger.Operation("listen"),
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func runMigrate(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info("applying initial schema", logger.Component("migrate"))
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	log.Info("migration successful", logger.Component("migrate"))
	return nil
}

func runBootstrap(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return newServices(cfg, db, log).bootstrap.Bootstrap(ctx, bootstrapConfig(cfg))
}

// services is the domain layer shared by the server and bootstrap commands.
type services struct {
	identity      *identity.Service
	roles         *authz.Service
	resolver      *authz.Resolver
	congregations *congregation.Service
	members       *member.Service
	bootstrap     *identity.BootstrapService
	audit         audit.Logger
}

func newServices(cfg *config.Config, db *postgres.DB, log *slog.Logger) *services {
	auditLogger := audit.NewSlogLoggerWith(log)

	roleRepo := postgres.NewRoleRepository(db)
	userRoleRepo := postgres.NewUserRoleRepository(db)

	// Role edits invalidate the cache; expiry bounds staleness across
	// replicas.
	var roleStore authz.RoleStore = roleRepo
	var roleCache authz.RoleCache
	if cfg.RoleCache.Enabled {
		cached := authz.NewCachedRoleStore(roleRepo, cfg.RoleCache.Size, cfg.RoleCache.TTL)
		roleStore, roleCache = cached, cached
	}

	roleService := authz.NewService(roleRepo, userRoleRepo, roleCache, auditLogger)

	hasher := identity.NewPasswordHasher(
		cfg.Argon2.Memory,
		cfg.Argon2.Iterations,
		cfg.Argon2.Parallelism,
		cfg.Argon2.SaltLength,
		cfg.Argon2.KeyLength,
	)
	identityService := identity.NewService(
		postgres.NewUserRepository(db),
		userRoleRepo,
		hasher,
		auditLogger,
		cfg.Security.LockoutMaxAttempts,
		cfg.Security.LockoutDuration,
	)

	congregationService := congregation.NewService(
		postgres.NewCongregationRepository(db),
		postgres.NewEventRepository(db),
		auditLogger,
	)

	return &services{
		identity:      identityService,
		roles:         roleService,
		resolver:      authz.NewResolver(roleStore),
		congregations: congregationService,
		members: member.NewService(
			postgres.NewMemberRepository(db),
			postgres.NewAttendanceRepository(db),
			congregationService,
			auditLogger,
		),
		bootstrap: identity.NewBootstrapService(identityService, roleService, auditLogger),
		audit:     auditLogger,
	}
}

func openDB(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	return postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}

func bootstrapConfig(cfg *config.Config) identity.BootstrapConfig {
	return identity.BootstrapConfig{
		AdminEmail:    cfg.Bootstrap.AdminEmail,
		AdminPassword: cfg.Bootstrap.AdminPassword,
	}
}

func signingKey(cfg config.TokenConfig, log *slog.Logger) (*rsa.PrivateKey, error) {
	if cfg.PrivateKeyFile != "" {
		return token.LoadKey(cfg.PrivateKeyFile)
	}
	log.Warn("TOKEN_PRIVATE_KEY_FILE not set, signing with an ephemeral key; tokens will not survive a restart")
	return token.GenerateKey()
}
