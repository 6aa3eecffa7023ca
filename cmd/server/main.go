// Command server runs the trust layer API. main only wires dependencies:
// every decision about which backend serves which concern is made here, from
// configuration, and nowhere else.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"hushmcp/internal/consent"
	consenthandler "hushmcp/internal/consent/handler"
	consentservice "hushmcp/internal/consent/service"
	httpapi "hushmcp/internal/http"
	"hushmcp/internal/platform/config"
	"hushmcp/internal/platform/httpserver"
	"hushmcp/internal/platform/logger"
	"hushmcp/internal/platform/metrics"
	"hushmcp/internal/platform/postgres"
	platformredis "hushmcp/internal/platform/redis"
	ratelimitmw "hushmcp/internal/ratelimit/middleware"
	authlockoutSvc "hushmcp/internal/ratelimit/service/authlockout"
	"hushmcp/internal/ratelimit/service/requestlimit"
	authlockoutStore "hushmcp/internal/ratelimit/store/authlockout"
	"hushmcp/internal/ratelimit/store/bucket"
	"hushmcp/internal/revocation"
	"hushmcp/internal/session"
	"hushmcp/internal/session/device"
	sessionhandler "hushmcp/internal/session/handler"
	sessionservice "hushmcp/internal/session/service"
	trusthandler "hushmcp/internal/trust/handler"
	trustservice "hushmcp/internal/trust/service"
	"hushmcp/internal/vault"
	vaulthandler "hushmcp/internal/vault/handler"
	vaultservice "hushmcp/internal/vault/service"
	"hushmcp/migrations"
	audit "hushmcp/pkg/platform/audit"
	auditpublisher "hushmcp/pkg/platform/audit/publisher"
	auditrelay "hushmcp/pkg/platform/audit/relay"
	auditmemory "hushmcp/pkg/platform/audit/store/memory"
	auditpostgres "hushmcp/pkg/platform/audit/store/postgres"
	auditworker "hushmcp/pkg/platform/audit/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)
	m := metrics.New()

	// Persistent backends. Without a Postgres DSN everything runs in memory,
	// which is only useful for dev and tests; the config layer already
	// rejects the combinations that make no sense in production.
	var db *sql.DB
	if cfg.Postgres.DSN != "" {
		db, err = postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()

		if cfg.DevMode {
			if _, err := db.ExecContext(ctx, migrations.Schema); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
	}

	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// The revocation registry is shared by consent tokens, trust links and
	// management sessions. Redis expires entries natively; the other
	// backends need the janitor.
	var registry revocation.Registry
	var registryPurger revocation.Purger
	switch cfg.Revocation.Backend {
	case "redis":
		registry = revocation.NewRedisRegistry(rdb.Client)
	case "postgres":
		pg := revocation.NewPostgresRegistry(db)
		registry, registryPurger = pg, pg
	default:
		mem := revocation.NewMemoryRegistry()
		registry, registryPurger = mem, mem
	}

	// Audit pipeline: services publish into a buffered channel, the worker
	// appends to the store, and with Kafka configured the relay ships the
	// Postgres outbox to the audit topic.
	events := auditpublisher.New(0, log)
	var auditStore audit.Store
	if db != nil {
		auditStore = auditpostgres.New(db)
	} else {
		auditStore = auditmemory.NewInMemoryStore()
	}
	worker := auditworker.New(auditStore, events.Inbox(), log)

	var relay *auditrelay.Relay
	if len(cfg.Kafka.Brokers) > 0 {
		outbox, ok := auditStore.(auditrelay.Outbox)
		if !ok {
			return errors.New("audit relay requires the postgres audit store; set POSTGRES_DSN")
		}
		relay, err = auditrelay.New(outbox, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log)
		if err != nil {
			return fmt.Errorf("build audit relay: %w", err)
		}
		defer relay.Close()
		if err := relay.EnsureTopic(ctx); err != nil {
			return fmt.Errorf("ensure audit topic: %w", err)
		}
	}

	// Abuse controls. Request buckets prefer Redis so budgets hold across
	// replicas; lockout records prefer Postgres so a restart does not reset
	// an attacker's failure count.
	var buckets requestlimit.BucketStore
	if rdb != nil {
		buckets = bucket.NewRedisBucketStore(rdb.Client)
	} else {
		buckets = bucket.NewInMemoryBucketStore()
	}
	var lockouts authlockoutSvc.Store
	var lockoutPurger revocation.Purger
	if db != nil {
		pg := authlockoutStore.NewPostgres(db)
		lockouts, lockoutPurger = pg, pg
	} else {
		mem := authlockoutStore.New()
		lockouts, lockoutPurger = mem, mem
	}

	// Vault records and consent bookkeeping share a store so the right to be
	// forgotten purges both in one place.
	var vaultStore vault.Store
	var consentRecords consent.Records
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.OpenPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("connect postgres pool: %w", err)
		}
		defer pool.Close()
		pg := vault.NewPostgresStore(pool)
		vaultStore, consentRecords = pg, pg
	} else {
		records := consent.NewMemoryRecords()
		vaultStore, consentRecords = vault.NewMemoryStore(records), records
	}

	// Services.
	consentSvc := consentservice.New(cfg.Secrets.SigningKey, registry, consentRecords, events, m, log)
	trustSvc := trustservice.New(cfg.Secrets.SigningKey, cfg.Consent.DefaultTrustLinkTTL, consentSvc, registry, events, m, log)
	vaultSvc := vaultservice.New(cfg.Secrets.VaultMasterKey, consentSvc, vaultStore, consentRecords, registry, events, m, log)

	jwtSvc := session.NewJWTService(cfg.Session.JWTSecret, cfg.Session.Issuer)
	lockoutSvc := authlockoutSvc.New(lockouts, events, m, log)
	sessionSvc := sessionservice.New(jwtSvc, cfg.Session.Accounts, cfg.Session.TTL,
		device.NewService(true), registry, lockoutSvc, events, m, log)
	requestSvc := requestlimit.New(buckets, events, log)

	limits := ratelimitmw.New(requestSvc, lockoutSvc, m, log,
		ratelimitmw.WithDisabled(cfg.DevMode))

	sessions := sessionhandler.New(sessionSvc, log)
	consents := consenthandler.New(consentSvc, cfg.Consent.DefaultTokenTTL, log)
	vaults := vaulthandler.New(vaultSvc, log)
	links := trusthandler.New(trustSvc, log)

	router := httpapi.New(httpapi.Handlers{
		Public:     []httpapi.PublicRoutes{sessions},
		Agent:      []httpapi.AgentRoutes{consents, links, vaults},
		Management: []httpapi.ManagementRoutes{sessions, consents, vaults},
	}, httpapi.Deps{
		Logger:      log,
		Metrics:     m,
		Sessions:    session.NewValidatorAdapter(jwtSvc),
		Revocations: registry,
		RateLimits:  limits,
	})

	srv := httpserver.New(cfg.HTTP.Addr, router)

	log.Info("starting hushmcp",
		"addr", cfg.HTTP.Addr,
		"revocation_backend", cfg.Revocation.Backend,
		"postgres", cfg.Postgres.DSN != "",
		"redis", rdb != nil,
		"kafka", relay != nil,
		"dev_mode", cfg.DevMode,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := worker.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			if err := relay.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if registryPurger != nil {
		janitor := revocation.NewJanitor(registryPurger, cfg.Revocation.JanitorInterval, log)
		g.Go(func() error { return janitor.Run(gctx) })
	}
	// The lockout table ages out on the same cadence as the revocation
	// registry; the janitor only needs the purge contract.
	lockoutJanitor := revocation.NewJanitor(lockoutPurger, cfg.Revocation.JanitorInterval, log)
	g.Go(func() error { return lockoutJanitor.Run(gctx) })

	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}
