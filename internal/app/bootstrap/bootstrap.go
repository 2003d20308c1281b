package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"skyward/contexts/field-integration/dockport"
	"skyward/contexts/field-integration/dronesim"
	"skyward/contexts/fleet-control/allocator"
	allocmemory "skyward/contexts/fleet-control/allocator/adapters/memory"
	allocredis "skyward/contexts/fleet-control/allocator/adapters/redis"
	allocentities "skyward/contexts/fleet-control/allocator/domain/entities"
	allocerrors "skyward/contexts/fleet-control/allocator/domain/errors"
	allocports "skyward/contexts/fleet-control/allocator/ports"
	"skyward/contexts/fleet-control/telemetry"
	telemetryredis "skyward/contexts/fleet-control/telemetry/adapters/redis"
	telemetryapp "skyward/contexts/fleet-control/telemetry/application"
	telemetryentities "skyward/contexts/fleet-control/telemetry/domain/entities"
	"skyward/contexts/flight-ops/orchestrator"
	orchmemory "skyward/contexts/flight-ops/orchestrator/adapters/memory"
	orchpostgres "skyward/contexts/flight-ops/orchestrator/adapters/postgres"
	orchredis "skyward/contexts/flight-ops/orchestrator/adapters/redis"
	orchapp "skyward/contexts/flight-ops/orchestrator/application"
	orchports "skyward/contexts/flight-ops/orchestrator/ports"
	"skyward/contexts/flight-ops/sequencer"
	seqapp "skyward/contexts/flight-ops/sequencer/application"
	v1 "skyward/contracts/messages/v1"
	"skyward/internal/platform/config"
	"skyward/internal/platform/db"
	"skyward/internal/platform/httpserver"
	"skyward/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type App struct {
	cfg    config.Config
	logger *slog.Logger

	bus      *messaging.Bus
	server   *httpserver.Server
	redis    *redis.Client
	postgres *db.Postgres

	allocatorModule    allocator.Module
	orchestratorModule orchestrator.Module
	sequencerModule    sequencer.Module
	telemetryModule    telemetry.Module
	drones             dronesim.Module
	dock               dockport.Module

	stops []func()
}

func Build() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName)

	bus := messaging.NewBus(logger)
	app := &App{cfg: cfg, logger: logger, bus: bus}

	var redisClient *redis.Client
	if cfg.EnableRedisMirror {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, errors.New("REDIS_ADDR is required when the mirror is enabled")
		}
		redisClient, err = db.ConnectRedis(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		app.redis = redisClient
	}

	var fleetMirror allocports.FleetMirror
	var missionMirror orchports.MissionMirror
	if redisClient != nil {
		fleetMirror = allocredis.NewMirror(redisClient)
		missionMirror = orchredis.NewMirror(redisClient)
	}

	fleetStore := allocmemory.NewStore(defaultFleet())
	app.allocatorModule = allocator.NewModule(allocator.Dependencies{
		Fleet:      fleetStore,
		Mirror:     fleetMirror,
		Publisher:  bus,
		Subscriber: bus,
		Responder:  bus,
		Clock:      systemClock{},
		Logger:     logger,
	})
	app.allocatorModule.Store = fleetStore

	app.sequencerModule = sequencer.NewModule(sequencer.Dependencies{
		Requester:  bus,
		Publisher:  bus,
		Subscriber: bus,
		Timeouts: seqapp.Timeouts{
			HealthCheck:   cfg.StepTimeout,
			UploadMission: cfg.StepTimeout,
			Arm:           cfg.StepTimeout,
			Takeoff:       cfg.StepTimeout,
			Land:          cfg.StepTimeout,
			ReturnToBase:  cfg.StepTimeout,
			Abort:         cfg.StepTimeout,
			Execution:     cfg.ExecutionTimeout,
			HealthRetries: cfg.HealthRetries,
			HealthBackoff: cfg.HealthBackoff,
		},
		Logger: logger,
	})

	// Missions live in memory by default; the postgres archive swaps in
	// a durable repository plus a durable outbox.
	missionStore := orchmemory.NewStore()
	var missions orchports.MissionRepository = missionStore
	var outboxWriter orchports.OutboxWriter = missionStore
	var outboxRepo orchports.OutboxRepository = missionStore
	if cfg.EnablePostgresArchive {
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("POSTGRES_DSN is required when the archive is enabled")
		}
		pg, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		app.postgres = pg
		repo := orchpostgres.NewRepository(pg.DB, logger)
		missions = repo
		outboxWriter = repo
		outboxRepo = repo
	}
	app.orchestratorModule = orchestrator.NewModule(orchestrator.Dependencies{
		Missions:   missions,
		Mirror:     missionMirror,
		Outbox:     outboxWriter,
		OutboxRepo: outboxRepo,
		Publisher:  bus,
		Requester:  bus,
		Subscriber: bus,
		Responder:  bus,
		Sessions:   sequencerSessions{runner: app.sequencerModule.Runner},
		Clock:      systemClock{},
		IDGen:      uuidGenerator{},
		Config: orchapp.Config{
			AllocateTimeout:   cfg.AllocateTimeout,
			ReleaseTimeout:    cfg.ReleaseTimeout,
			DockTimeout:       cfg.DockTimeout,
			MaxActiveMission:  cfg.MaxActiveMission,
			DefaultMinBattery: cfg.DefaultMinBattery,
		},
		RelayBatch: cfg.OutboxBatch,
		RelayEvery: cfg.OutboxInterval,
		Logger:     logger,
	})
	if !cfg.EnablePostgresArchive {
		app.orchestratorModule.Store = missionStore
	}

	telemetryDeps := telemetry.Dependencies{
		Fleet:      fleetTelemetryWriter{fleet: fleetStore},
		Publisher:  bus,
		Subscriber: bus,
		Clock:      systemClock{},
		Thresholds: telemetryapp.Thresholds{
			BatteryFloor: cfg.BatteryFloor,
			AltitudeMax:  cfg.AltitudeMax,
			Staleness:    cfg.StalenessWindow,
		},
		SweepInterval: cfg.SweepInterval,
		Logger:        logger,
	}
	if redisClient != nil {
		telemetryDeps.Mirror = telemetryredis.NewMirror(redisClient, cfg.StalenessWindow*2)
	}
	app.telemetryModule = telemetry.NewModule(telemetryDeps)

	if cfg.EnableSimulators {
		app.drones = dronesim.NewModule(defaultSimFleet(), dronesim.Dependencies{
			Publisher: bus,
			Responder: bus,
			Clock:     systemClock{},
			Cadence:   cfg.TelemetryCadence,
			Logger:    logger,
		})
		app.dock = dockport.NewModule(dockport.Dependencies{
			Publisher:   bus,
			Responder:   bus,
			Slots:       cfg.DockSlots,
			ChargeDelay: cfg.ChargeDelay,
			Logger:      logger,
		})
	}

	app.server = httpserver.New(bus, logger, normalizeAddr(cfg.HTTPPort), cfg.AllocateTimeout+cfg.DockTimeout)
	return app, nil
}

// Run starts every consumer and worker, then serves HTTP until the
// process ends.
func (a *App) Run(ctx context.Context) error {
	a.stops = append(a.stops,
		a.allocatorModule.Consumer.Start(ctx),
		a.allocatorModule.Signals.Start(ctx),
		a.orchestratorModule.Consumer.Start(ctx),
		a.orchestratorModule.Reactor.Start(ctx),
		a.sequencerModule.Progress.Start(ctx),
		a.telemetryModule.Consumer.Start(ctx),
	)
	go a.orchestratorModule.Relay.Start(ctx)
	go a.telemetryModule.Sweeper.Start(ctx)

	if a.cfg.EnableSimulators {
		a.stops = append(a.stops,
			a.dock.Start(a.bus),
			a.drones.Start(ctx, a.bus),
		)
	}

	a.logger.Info("station started",
		"event", "bootstrap_station_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"simulators", a.cfg.EnableSimulators,
	)
	return a.server.Start()
}

func (a *App) Close() error {
	for _, stop := range a.stops {
		stop()
	}
	a.stops = nil
	a.bus.Close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			return err
		}
	}
	return a.postgres.Close()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type uuidGenerator struct{}

func (uuidGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// sequencerSessions adapts the sequencer's runner to the orchestrator's
// session port so neither context imports the other.
type sequencerSessions struct {
	runner seqapp.Runner
}

func (s sequencerSessions) Run(
	ctx context.Context,
	missionID, droneID, missionType string,
	waypoints []v1.Waypoint,
	abort <-chan struct{},
) orchports.SessionOutcome {
	outcome := s.runner.Run(ctx, missionID, droneID, missionType, waypoints, abort)
	return orchports.SessionOutcome{
		DroneID: outcome.DroneID,
		Status:  string(outcome.Status),
		Step:    string(outcome.Step),
		Fault:   outcome.Fault,
	}
}

// fleetTelemetryWriter folds normalized samples into the allocator's
// fleet state. Samples from drones outside the roster are dropped.
type fleetTelemetryWriter struct {
	fleet allocports.FleetRepository
}

func (w fleetTelemetryWriter) RecordSample(ctx context.Context, sample telemetryentities.Sample) error {
	_, err := w.fleet.UpdateTelemetry(ctx, sample.DroneID, allocentities.TelemetrySnapshot{
		Lat:      sample.Position.Lat,
		Lon:      sample.Position.Lon,
		Alt:      sample.Position.Alt,
		Battery:  sample.Battery,
		Velocity: sample.Velocity,
		Status:   sample.Status,
		At:       sample.At,
	})
	if errors.Is(err, allocerrors.ErrDroneNotFound) {
		return nil
	}
	return err
}

func defaultFleet() []allocentities.DroneState {
	now := time.Now().UTC()
	seeds := defaultSimFleet()
	fleet := make([]allocentities.DroneState, 0, len(seeds))
	for _, seed := range seeds {
		fleet = append(fleet, allocentities.DroneState{
			DroneID:      seed.DroneID,
			Status:       allocentities.StatusAvailable,
			Capabilities: []string{"camera"},
			Telemetry: allocentities.TelemetrySnapshot{
				Lat:     seed.Position.Lat,
				Lon:     seed.Position.Lon,
				Alt:     seed.Position.Alt,
				Battery: seed.Battery,
				At:      now,
			},
			LastHeartbeat: now,
		})
	}
	return fleet
}

func defaultSimFleet() []dronesim.Seed {
	return []dronesim.Seed{
		{DroneID: "drone-01", Battery: 95, Position: v1.Position{Lat: 47.3977, Lon: 8.5456, Alt: 0}},
		{DroneID: "drone-02", Battery: 90, Position: v1.Position{Lat: 47.3978, Lon: 8.5457, Alt: 0}},
		{DroneID: "drone-03", Battery: 85, Position: v1.Position{Lat: 47.3979, Lon: 8.5458, Alt: 0}},
		{DroneID: "drone-04", Battery: 40, Position: v1.Position{Lat: 47.3980, Lon: 8.5459, Alt: 0}},
	}
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
