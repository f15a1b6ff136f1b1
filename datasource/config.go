package datasource

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Label time zone modes besides IANA names
const (
	LabelZoneLocal    = "local"    // server local time
	LabelZoneLocation = "location" // UTC offset of the forecast city
)

// Geolocation modes
const (
	GeolocationStatic = "static"
	GeolocationIP     = "ip"
)

// Config represents the application configuration
type Config struct {
	AppEnv   string `json:"appEnv"`
	LogLevel string `json:"logLevel"`

	OpenWeatherMap struct {
		APIKey         string `json:"apiKey"`
		BaseURL        string `json:"baseURL"`
		Units          string `json:"units"`
		TimeoutSeconds int    `json:"timeoutSeconds"`
	} `json:"openWeatherMap"`

	// Where the server looks when a client asks to "use my location"
	// without supplying coordinates
	Geolocation struct {
		Mode        string   `json:"mode"`
		Latitude    *float64 `json:"latitude"`
		Longitude   *float64 `json:"longitude"`
		IPLookupURL string   `json:"ipLookupURL"`
	} `json:"geolocation"`

	// Time zone used for hour and weekday labels
	LabelTimezone string `json:"labelTimezone"`

	RateLimit struct {
		RequestsPerSecond float64 `json:"requestsPerSecond"`
		Burst             int     `json:"burst"`
	} `json:"rateLimit"`
}

// DefaultConfig creates a default configuration
func DefaultConfig() *Config {
	config := &Config{
		AppEnv:        "dev",
		LogLevel:      "info",
		LabelTimezone: LabelZoneLocal,
	}
	config.OpenWeatherMap.BaseURL = "https://api.openweathermap.org"
	config.OpenWeatherMap.Units = "metric"
	config.OpenWeatherMap.TimeoutSeconds = 10
	config.Geolocation.Mode = GeolocationStatic
	config.Geolocation.IPLookupURL = "http://ip-api.com"
	// OpenWeatherMap free tier allows 60 calls/minute
	config.RateLimit.RequestsPerSecond = 1.0
	config.RateLimit.Burst = 5
	return config
}

// LoadConfig loads configuration from a JSON file on top of the defaults
func LoadConfig(filename string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}

	return config, nil
}

// ApplyEnv overrides configuration values from environment variables
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv("APP_ENV")); v != "" {
		c.AppEnv = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENWEATHERMAP_API_KEY")); v != "" {
		c.OpenWeatherMap.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENWEATHERMAP_BASE_URL")); v != "" {
		c.OpenWeatherMap.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("LABEL_TIMEZONE")); v != "" {
		c.LabelTimezone = v
	}
	if v := strings.TrimSpace(os.Getenv("GEOLOCATION_MODE")); v != "" {
		c.Geolocation.Mode = v
	}

	lat, err := envFloat("DEFAULT_LATITUDE")
	if err != nil {
		return err
	}
	if lat != nil {
		c.Geolocation.Latitude = lat
	}
	lon, err := envFloat("DEFAULT_LONGITUDE")
	if err != nil {
		return err
	}
	if lon != nil {
		c.Geolocation.Longitude = lon
	}
	return nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	switch c.AppEnv {
	case "dev", "prod":
	default:
		return fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", c.AppEnv)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.OpenWeatherMap.APIKey == "" {
		return fmt.Errorf("no OpenWeatherMap API key provided (set OPENWEATHERMAP_API_KEY)")
	}
	switch c.Geolocation.Mode {
	case GeolocationStatic, GeolocationIP:
	default:
		return fmt.Errorf("invalid geolocation mode %q (allowed: static, ip)", c.Geolocation.Mode)
	}
	if (c.Geolocation.Latitude == nil) != (c.Geolocation.Longitude == nil) {
		return fmt.Errorf("default latitude and longitude must be set together")
	}
	switch c.LabelTimezone {
	case LabelZoneLocal, LabelZoneLocation:
	default:
		if _, err := time.LoadLocation(c.LabelTimezone); err != nil {
			return fmt.Errorf("invalid LABEL_TIMEZONE %q: %w", c.LabelTimezone, err)
		}
	}
	return nil
}

// Timeout returns the upstream request timeout
func (c *Config) Timeout() time.Duration {
	if c.OpenWeatherMap.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.OpenWeatherMap.TimeoutSeconds) * time.Second
}

// LabelZone returns the time zone for display labels. utcOffset is the
// forecast city's offset in seconds, used in "location" mode.
func (c *Config) LabelZone(utcOffset int) *time.Location {
	switch c.LabelTimezone {
	case "", LabelZoneLocal:
		return time.Local
	case LabelZoneLocation:
		return time.FixedZone("", utcOffset)
	}
	loc, err := time.LoadLocation(c.LabelTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ParseLogLevel maps a LOG_LEVEL value onto a slog level
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func envFloat(key string) (*float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return &v, nil
}
