package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/forecal/forecal/internal/forecast"
)

// AppConfig holds all service settings, populated from environment variables.
type AppConfig struct {
	Port string

	// NWS API access.
	NWSBaseURL string
	UserAgent  string

	// Outbound timeouts: HTTPTimeout bounds NWS calls, SoloizeFetchTimeout
	// bounds arbitrary calendar feed fetches.
	HTTPTimeout         time.Duration
	SoloizeFetchTimeout time.Duration

	// Cache TTLs. ForecastTTL also bounds alert staleness; SoloizeTTL doubles
	// as the proactive refresh interval for tracked feeds.
	ForecastTTL time.Duration
	SoloizeTTL  time.Duration

	// DefaultGrid and DefaultAlertZone back the fixed-location legacy routes.
	DefaultGrid      forecast.Gridpoint
	DefaultAlertZone string

	// Timezone used for day boundaries and human-readable timestamps.
	Timezone *time.Location

	Thresholds forecast.Thresholds
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		Port:             getenvDefault("PORT", "8080"),
		NWSBaseURL:       getenvDefault("NWS_BASE_URL", "https://api.weather.gov"),
		UserAgent:        getenvDefault("NWS_USER_AGENT", "forecal/1.0 (github.com/forecal/forecal)"),
		DefaultAlertZone: getenvDefault("DEFAULT_ALERT_ZONE", "CAZ508"),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SoloizeFetchTimeout, err = getenvDuration("SOLOIZE_FETCH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ForecastTTL, err = getenvDuration("FORECAST_CACHE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SoloizeTTL, err = getenvDuration("SOLOIZE_CACHE_TTL", 3*time.Hour); err != nil {
		return nil, err
	}

	grid, err := forecast.ParseGridpoint(getenvDefault("DEFAULT_GRID", "MTR/93,86"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_GRID: %w", err)
	}
	cfg.DefaultGrid = grid

	tzName := getenvDefault("TIMEZONE", "America/Los_Angeles")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}
	cfg.Timezone = tz

	t := forecast.DefaultThresholds()
	t.RainMinPoP = getenvFloat("RAIN_MIN_POP", t.RainMinPoP)
	t.WarmMinTempF = getenvFloat("WARM_MIN_TEMP", t.WarmMinTempF)
	t.CoolMaxTempF = getenvFloat("COOL_MAX_TEMP", t.CoolMaxTempF)
	t.CoolMaxDewpointC = getenvFloat("COOL_MAX_DEWPOINT", t.CoolMaxDewpointC)
	t.BestRefTempF = getenvFloat("BEST_REF_TEMP", t.BestRefTempF)
	cfg.Thresholds = t

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
