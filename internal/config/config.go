package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"medroute/internal/engine"
)

// Config is the process configuration, read from the environment (an
// optional .env file is loaded first).
type Config struct {
	Addr        string
	DatabaseURL string // empty selects the in-memory store
	RedisURL    string // empty selects the in-process event broker
	FleetFile   string

	GeocoderURL     string // empty disables external geocoding
	GeocoderCountry string
	GeocoderRPS     float64
	GeocoderTimeout time.Duration

	Engine engine.Config
}

// Load reads configuration from the environment. Solver knobs default to
// the dispatch-center constants in engine.DefaultConfig.
func Load() (*Config, error) {
	// Load .env into the environment (ignore if missing).
	_ = godotenv.Load()

	cfg := &Config{
		Addr:        getenvDefault("ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		FleetFile:   os.Getenv("FLEET_FILE"),

		GeocoderURL:     getenvDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderCountry: os.Getenv("GEOCODER_COUNTRY"),

		Engine: engine.DefaultConfig(),
	}

	var err error
	if cfg.GeocoderRPS, err = envFloat("GEOCODER_RPS", 1); err != nil {
		return nil, err
	}
	sec, err := envInt("GEOCODER_TIMEOUT_SEC", 10)
	if err != nil {
		return nil, err
	}
	cfg.GeocoderTimeout = time.Duration(sec) * time.Second

	e := &cfg.Engine
	if e.SpeedKmh, err = envFloat("SPEED_KMH", e.SpeedKmh); err != nil {
		return nil, err
	}
	if e.ServiceMin, err = envInt("SERVICE_MIN", e.ServiceMin); err != nil {
		return nil, err
	}
	if e.LatenessMarginMin, err = envInt("LATENESS_MARGIN_MIN", e.LatenessMarginMin); err != nil {
		return nil, err
	}
	if e.MaxWaitMin, err = envInt("MAX_WAIT_MIN", e.MaxWaitMin); err != nil {
		return nil, err
	}
	if e.ShiftStartMin, err = envClock("SHIFT_START", e.ShiftStartMin); err != nil {
		return nil, err
	}
	if e.ShiftEndMin, err = envClock("SHIFT_END", e.ShiftEndMin); err != nil {
		return nil, err
	}
	if e.ShiftEndMin <= e.ShiftStartMin {
		return nil, fmt.Errorf("SHIFT_END must be after SHIFT_START")
	}
	if e.MaxShiftMin, err = envInt("MAX_SHIFT_MIN", e.MaxShiftMin); err != nil {
		return nil, err
	}
	if e.MaxRideFactor, err = envFloat("MAX_RIDE_FACTOR", e.MaxRideFactor); err != nil {
		return nil, err
	}
	if e.MaxRideBufferMin, err = envInt("MAX_RIDE_BUFFER_MIN", e.MaxRideBufferMin); err != nil {
		return nil, err
	}
	budgetMs, err := envInt("SOLVER_TIME_BUDGET_MS", int(e.TimeBudget/time.Millisecond))
	if err != nil {
		return nil, err
	}
	e.TimeBudget = time.Duration(budgetMs) * time.Millisecond
	if e.MaxIterations, err = envInt("SOLVER_MAX_ITERATIONS", e.MaxIterations); err != nil {
		return nil, err
	}
	seed, err := envInt("SOLVER_SEED", int(e.Seed))
	if err != nil {
		return nil, err
	}
	e.Seed = int64(seed)
	if e.MatrixWorkers, err = envInt("MATRIX_WORKERS", e.MatrixWorkers); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func envFloat(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return f, nil
}

func envClock(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	m, err := engine.ParseMinuteOfDay(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", k, err)
	}
	return m, nil
}
