package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string
	RedisAddr   string
	RedisDB     int

	AllocateTimeout  time.Duration
	ReleaseTimeout   time.Duration
	DockTimeout      time.Duration
	StepTimeout      time.Duration
	ExecutionTimeout time.Duration
	MaxActiveMission time.Duration
	HealthRetries    int
	HealthBackoff    time.Duration

	TelemetryCadence time.Duration
	StalenessWindow  time.Duration
	SweepInterval    time.Duration
	BatteryFloor     float64
	AltitudeMax      float64

	DefaultMinBattery float64
	OutboxBatch       int
	OutboxInterval    time.Duration
	DockSlots         int
	ChargeDelay       time.Duration

	EnablePostgresArchive bool
	EnableRedisMirror     bool
	EnableSimulators      bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "skyward"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisDB:     envInt("REDIS_DB", 0),

		AllocateTimeout:  envDuration("ALLOCATE_TIMEOUT", 5*time.Second),
		ReleaseTimeout:   envDuration("RELEASE_TIMEOUT", 5*time.Second),
		DockTimeout:      envDuration("DOCK_TIMEOUT", 10*time.Second),
		StepTimeout:      envDuration("STEP_TIMEOUT", 5*time.Second),
		ExecutionTimeout: envDuration("EXECUTION_TIMEOUT", 2*time.Minute),
		MaxActiveMission: envDuration("MAX_ACTIVE_MISSION", 10*time.Minute),
		HealthRetries:    envInt("HEALTH_RETRIES", 2),
		HealthBackoff:    envDuration("HEALTH_BACKOFF", 200*time.Millisecond),

		TelemetryCadence: envDuration("TELEMETRY_CADENCE", 250*time.Millisecond),
		StalenessWindow:  envDuration("STALENESS_WINDOW", 3*time.Second),
		SweepInterval:    envDuration("SWEEP_INTERVAL", time.Second),
		BatteryFloor:     envFloat("BATTERY_FLOOR", 20),
		AltitudeMax:      envFloat("ALTITUDE_MAX", 120),

		DefaultMinBattery: envFloat("DEFAULT_MIN_BATTERY", 30),
		OutboxBatch:       envInt("OUTBOX_BATCH", 100),
		OutboxInterval:    envDuration("OUTBOX_INTERVAL", 200*time.Millisecond),
		DockSlots:         envInt("DOCK_SLOTS", 4),
		ChargeDelay:       envDuration("CHARGE_DELAY", 500*time.Millisecond),

		EnablePostgresArchive: envBool("ENABLE_POSTGRES_ARCHIVE", false),
		EnableRedisMirror:     envBool("ENABLE_REDIS_MIRROR", false),
		EnableSimulators:      envBool("ENABLE_SIMULATORS", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
