package main

import (
	"context"

	appointmentshandler "skedit/internal/appointments/handler"
	appointmentsrepo "skedit/internal/appointments/repository"
	appointmentsservice "skedit/internal/appointments/service"
	appointmentsvalidator "skedit/internal/appointments/validator"
	"skedit/internal/fanout"
	lockshandler "skedit/internal/locks/handler"
	"skedit/internal/locks/notify"
	locksrepo "skedit/internal/locks/repository"
	locksservice "skedit/internal/locks/service"
	"skedit/internal/locks/sweeper"
	locksvalidator "skedit/internal/locks/validator"
	"skedit/internal/presence"
	"skedit/internal/seed"
	usersrepo "skedit/internal/users/repository"
	"skedit/pkg/app"
	"skedit/pkg/auth"
	"skedit/pkg/config"
	kafka_config "skedit/pkg/kafka/config"
	"skedit/pkg/metrics"
)

const ServiceName = "locks"

type stores struct {
	locks        locksrepo.LockRepository
	users        usersrepo.UserRepository
	appointments appointmentsrepo.AppointmentRepository
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Locks service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverApp := build(ctx, cfg, metrics.New())
	serverApp.Run()
}

// build wires the stores, lock service, presence hub and HTTP handlers into
// an application ready to Run. Background workers are started against ctx.
func build(ctx context.Context, cfg *config.Config, m *metrics.Metrics) *app.Application {
	serverApp := app.NewApplication(cfg, m)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	st := initStores(cfg, serverApp)

	hub := presence.NewHub(cfg.Log, m)
	serverApp.AddWorker(hub)
	pusher := initPusher(ctx, cfg, hub, serverApp, m)

	notifier := notify.Noop()
	if cfg.PushEnabled {
		notifier = notify.NewPushNotifier(pusher, cfg.Log)
	}

	lockService := locksservice.NewLockService(
		st.locks,
		st.users,
		locksvalidator.NewLockValidator(cfg.Log),
		cfg,
		locksservice.WithMetrics(m),
		locksservice.WithExpiredHandler(notifier.LockExpired),
	)

	lockSweeper := sweeper.New(lockService, notifier, cfg.LockSweepInterval, cfg.Log, m)
	lockSweeper.Start(ctx)
	serverApp.AddWorker(lockSweeper)

	appointmentService := appointmentsservice.NewAppointmentService(
		st.appointments,
		lockService,
		appointmentsvalidator.NewAppointmentValidator(cfg.Log),
		cfg,
	)

	ws := presence.NewWSHandler(hub, pusher, lockService, verifier, presence.Options{
		HeartbeatInterval:  cfg.HeartbeatInterval,
		PointerMinInterval: cfg.PointerMinInterval,
		SendBuffer:         cfg.ConnSendBuffer,
		AllowedOrigins:     cfg.AllowedOrigins,
	}, cfg.Log)

	serverApp.SetApp(
		lockshandler.NewLockHandler(lockService, notifier, verifier, serverApp.RateLimiter(), cfg.Log),
		appointmentshandler.NewAppointmentHandler(appointmentService, notifier, verifier, cfg.Log),
		presence.NewHandler(hub, pusher, ws, verifier, cfg.Log),
	)
	return serverApp
}

func initStores(cfg *config.Config, serverApp *app.Application) stores {
	if cfg.StoreDriver == config.StoreMemory {
		data, err := seed.Load(cfg.SeedFile)
		if err != nil {
			cfg.Log.Fatal("Failed to load seed data", "error", err)
		}
		cfg.Log.Warn("Using in-memory store, state is lost on restart and not shared between instances",
			"users", len(data.Users),
			"appointments", len(data.Appointments),
		)
		return stores{
			locks:        locksrepo.NewMemoryLockRepository(),
			users:        usersrepo.NewMemoryUserRepository(data.Users...),
			appointments: appointmentsrepo.NewMemoryAppointmentRepository(data.Appointments...),
		}
	}

	cfg.SetMongo()
	serverApp.AddReadinessCheck("mongo", func(ctx context.Context) error {
		return cfg.Client.Mongo.Ping(ctx, nil)
	})
	cfg.Log.Info("Lock store initialized", "database", cfg.MongoDatabaseName)
	return stores{
		locks:        locksrepo.NewMongoLockRepository(cfg),
		users:        usersrepo.NewMongoUserRepository(cfg),
		appointments: appointmentsrepo.NewMongoAppointmentRepository(cfg),
	}
}

func initPusher(ctx context.Context, cfg *config.Config, hub *presence.Hub, serverApp *app.Application, m *metrics.Metrics) presence.Pusher {
	var transport fanout.Transport
	switch cfg.FanoutDriver {
	case config.FanoutKafka:
		kafkaCfg, err := kafka_config.Load()
		if err != nil {
			cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
		}
		kafkaCfg.LogConfiguration(cfg.Log)
		transport, err = fanout.NewKafkaTransport(kafkaCfg, cfg.FanoutTopic, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka backplane", "error", err)
		}
	case config.FanoutRedis:
		cfg.SetRedis()
		serverApp.AddReadinessCheck("redis", func(ctx context.Context) error {
			return cfg.Client.Redis.Ping(ctx).Err()
		})
		transport = fanout.NewRedisTransport(cfg.Client.Redis, cfg.RedisChannel, cfg.Log)
	default:
		return hub
	}

	backplane := fanout.NewBackplane(hub, transport, cfg.Log, m)
	if err := backplane.Start(ctx); err != nil {
		cfg.Log.Fatal("Failed to start presence backplane", "error", err)
	}
	serverApp.AddWorker(backplane)
	return backplane
}
