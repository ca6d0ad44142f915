// server runs the MFA gRPC service. With DATABASE_URL unset it runs on in-memory stores.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"coaching-platform/backend/internal/audit"
	auditrepo "coaching-platform/backend/internal/audit/repository"
	"coaching-platform/backend/internal/config"
	"coaching-platform/backend/internal/db"
	devicerepo "coaching-platform/backend/internal/device/repository"
	deviceservice "coaching-platform/backend/internal/device/service"
	healthhandler "coaching-platform/backend/internal/health/handler"
	"coaching-platform/backend/internal/mfa"
	mfarepo "coaching-platform/backend/internal/mfa/repository"
	mfaservice "coaching-platform/backend/internal/mfa/service"
	"coaching-platform/backend/internal/platform/clock"
	"coaching-platform/backend/internal/platform/logger"
	"coaching-platform/backend/internal/ratelimit"
	"coaching-platform/backend/internal/security"
	"coaching-platform/backend/internal/server"
	"coaching-platform/backend/internal/server/interceptors"
	sessionrepo "coaching-platform/backend/internal/session/repository"
	sessionservice "coaching-platform/backend/internal/session/service"
	"coaching-platform/backend/internal/telemetry"
	telemetryotel "coaching-platform/backend/internal/telemetry/otel"
	"coaching-platform/backend/internal/telemetry/producer"
	userdomain "coaching-platform/backend/internal/user/domain"
	userrepo "coaching-platform/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Version:     cfg.ServiceVersion,
		Insecure:    cfg.OTLPInsecure,
	}, log)
	if err != nil {
		log.Fatal("otel setup failed", zap.Error(err))
	}
	providers.SetGlobal()

	tokens, err := security.NewTokenProviderFromPEM(cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	if err != nil {
		log.Fatal("jwt keys", zap.Error(err))
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("store setup failed", zap.Error(err))
	}
	defer st.close()

	sinks, async, publishers := eventSinks(cfg, st, providers, log)
	for _, p := range publishers {
		defer func() { _ = p.Close() }()
	}
	svc, err := newMFAService(cfg, st, audit.NewLogger(log, clock.System, interceptors.ClientInfo, sinks...), log)
	if err != nil {
		log.Fatal("mfa service", zap.Error(err))
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal("listen", zap.Error(err))
	}
	defer lis.Close()

	s := server.NewGRPCServer(tokens, log)
	server.RegisterServices(s, server.Deps{MFA: svc, HealthChecks: st.checks, Logger: log})

	go func() {
		log.Info("gRPC server listening",
			zap.String("addr", cfg.GRPCAddr),
			zap.String("store", st.kind),
			zap.String("rate_limit_backend", cfg.RateLimitBackend),
		)
		if err := s.Serve(lis); err != nil {
			log.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gRPC server")
	s.GracefulStop()
	drainCtx, cancel := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration)
	defer cancel()
	for _, a := range async {
		if !a.Drain(drainCtx) {
			log.Warn("security event writes still in flight at shutdown")
		}
	}
	if err := providers.Shutdown(drainCtx); err != nil {
		log.Warn("otel shutdown", zap.Error(err))
	}
	log.Info("gRPC server stopped")
}

// newMFAService builds the orchestrator and its components over st.
func newMFAService(cfg *config.Config, st *stores, events audit.Recorder, log *zap.Logger) (*mfaservice.Service, error) {
	codec, err := mfa.NewSecretCodec(cfg.MFAEncryptionKey, cfg.MFASaltKey)
	if err != nil {
		return nil, fmt.Errorf("mfa codec: %w", err)
	}
	registry, err := deviceservice.NewRegistry(st.devices, cfg.TrustTTL(), clock.System, nil, log)
	if err != nil {
		return nil, fmt.Errorf("trusted device registry: %w", err)
	}
	return mfaservice.NewService(mfaservice.Deps{
		Enrollments:     st.enrollments,
		Profiles:        st.profiles,
		Limiter:         ratelimit.NewLimiter(st.counter, cfg.RateLimitMax, cfg.RateWindow(), clock.System, log),
		Devices:         registry,
		Sessions:        sessionservice.NewManager(st.sessions, cfg.TempSessionLifetime(), cfg.SessionLifetime(), clock.System, nil, log),
		Events:          events,
		EventReader:     st.events,
		Otp:             mfa.NewOtpEngine(cfg.MFAIssuer, nil),
		Codec:           codec,
		BackupCodeCount: cfg.BackupCodeCount,
		Clock:           clock.System,
		Logger:          log,
	}), nil
}

// eventSinks returns the security event sinks: the event store first, then asynchronous
// publishers. The caller drains async and closes publishers on shutdown.
func eventSinks(cfg *config.Config, st *stores, providers *telemetryotel.Providers, log *zap.Logger) ([]audit.Sink, []*telemetry.AsyncSink, []producer.Producer) {
	sinks := []audit.Sink{audit.SinkFunc(st.events.Create)}
	var async []*telemetry.AsyncSink
	var publishers []producer.Producer
	if kp := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.SecurityEventsTopic); kp != nil {
		publishers = append(publishers, kp)
		log.Info("security events publishing to kafka", zap.String("topic", cfg.SecurityEventsTopic))
	}
	for _, p := range publishers {
		a := telemetry.NewAsyncSink("kafka", p, log)
		async = append(async, a)
		sinks = append(sinks, a)
	}
	if cfg.OTLPEndpoint != "" && providers != nil {
		a := telemetry.NewAsyncSink("otel", telemetryotel.NewEventSink(providers.LoggerProvider), log)
		async = append(async, a)
		sinks = append(sinks, a)
	}
	return sinks, async, publishers
}

// stores is the persistence chosen for this process.
type stores struct {
	kind        string
	enrollments mfaservice.EnrollmentRepo
	profiles    mfaservice.ProfileRepo
	devices     devicerepo.Repository
	sessions    sessionrepo.Repository
	events      auditrepo.Repository
	counter     ratelimit.Counter
	checks      []healthhandler.Check
	closers     []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	st := &stores{}
	var pool *pgxpool.Pool
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		st.kind = "memory"
		st.enrollments = mfarepo.NewMemoryRepository(clock.System)
		profiles := userrepo.NewMemoryRepository()
		if !cfg.IsProduction() {
			if err := profiles.Upsert(ctx, userdomain.DevProfile(time.Now().UTC())); err != nil {
				return nil, fmt.Errorf("seed dev profile: %w", err)
			}
			log.Info("seeded in-memory dev profile", zap.String("user_id", userdomain.DevUserID))
		}
		st.profiles = profiles
		st.devices = devicerepo.NewMemoryRepository()
		st.sessions = sessionrepo.NewMemoryRepository()
		st.events = auditrepo.NewMemoryRepository()
	} else {
		var err error
		pool, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, pool.Close)
		st.kind = "postgres"
		st.enrollments = mfarepo.NewPostgresRepository(pool)
		st.profiles = userrepo.NewPostgresRepository(pool)
		st.devices = devicerepo.NewPostgresRepository(pool)
		st.sessions = sessionrepo.NewPostgresRepository(pool)
		st.events = auditrepo.NewPostgresRepository(pool)
		st.checks = append(st.checks, healthhandler.Check{Name: "postgres", Pinger: pool})
	}

	switch cfg.RateLimitBackend {
	case "postgres":
		st.counter = ratelimit.NewPostgresCounter(pool)
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			st.close()
			return nil, fmt.Errorf("redis url: %w", err)
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			st.close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		st.closers = append(st.closers, func() { _ = client.Close() })
		st.counter = ratelimit.NewRedisCounter(client, "")
		st.checks = append(st.checks, healthhandler.Check{Name: "redis", Pinger: healthhandler.PingerFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})})
	default:
		st.counter = ratelimit.NewMemoryCounter()
	}
	return st, nil
}
