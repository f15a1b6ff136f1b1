package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weather-dashboard/api"
	"weather-dashboard/cache"
	"weather-dashboard/collector"
	"weather-dashboard/dashboard"
	"weather-dashboard/datasource"
	"weather-dashboard/geolocation"
	"weather-dashboard/logging"
	"weather-dashboard/providers/openweathermap"

	"github.com/joho/godotenv"
)

const (
	appName         = "weather-dashboard"
	shutdownTimeout = 10 * time.Second
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load environment variables from .env file
	envErr := godotenv.Load()

	// Parse command line arguments
	port := flag.Int("port", 8080, "Port to run the server on")
	configFile := flag.String("config", "", "Path to an optional JSON configuration file")
	enableRateLimiting := flag.Bool("rate-limit", true, "Enable API rate limiting")
	cacheTTL := flag.Duration("cache-ttl", 10*time.Minute, "Cache upstream responses for this long (0 disables)")
	refreshInterval := flag.Duration("refresh", 0, "Re-run the last refresh on this interval (0 disables)")
	flag.Parse()

	config := datasource.DefaultConfig()
	if *configFile != "" {
		loaded, err := datasource.LoadConfig(*configFile)
		if err != nil {
			return err
		}
		config = loaded
	}
	if err := config.ApplyEnv(); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	level, _ := datasource.ParseLogLevel(config.LogLevel)
	logger := logging.New(config.AppEnv, level, version, appName)
	slog.SetDefault(logger)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn("error loading .env file", "error", envErr)
	}

	owm := openweathermap.NewClient(openweathermap.Options{
		APIKey:  config.OpenWeatherMap.APIKey,
		BaseURL: config.OpenWeatherMap.BaseURL,
		Units:   config.OpenWeatherMap.Units,
		Timeout: config.Timeout(),
		Logger:  logger,
	})

	var upstream datasource.Upstream = owm
	if *enableRateLimiting {
		upstream = datasource.NewRateLimitedUpstream(owm, config.RateLimit.RequestsPerSecond, config.RateLimit.Burst)
		logger.Info("applied rate limiting",
			"provider", owm.Name(),
			"rps", config.RateLimit.RequestsPerSecond,
			"burst", config.RateLimit.Burst,
		)
	}

	var conditions datasource.ConditionsSource = upstream
	var forecasts datasource.ForecastSource = upstream
	caches := map[string]api.CacheStats{}
	if *cacheTTL > 0 {
		cachedConditions := cache.NewCachedConditionsSource(upstream, *cacheTTL, logger)
		cachedForecasts := cache.NewCachedForecastSource(upstream, *cacheTTL, logger)
		conditions, forecasts = cachedConditions, cachedForecasts
		caches["conditions"] = cachedConditions
		caches["forecast"] = cachedForecasts
		logger.Info("caching upstream responses", "ttl", *cacheTTL)
	}

	var locator geolocation.Locator
	switch config.Geolocation.Mode {
	case datasource.GeolocationIP:
		locator = geolocation.NewIPLocator(config.Geolocation.IPLookupURL, config.Timeout())
	default:
		locator = geolocation.NewStaticLocator(config.Geolocation.Latitude, config.Geolocation.Longitude)
	}

	hub := api.NewNotificationHub(20)
	dash, err := dashboard.New(dashboard.Options{
		Geocoder:   upstream,
		Conditions: conditions,
		Forecasts:  forecasts,
		Locator:    locator,
		Notifier:   hub,
		LabelZone:  config.LabelZone,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	server := api.NewServer(api.Options{
		Port:           *port,
		Dashboard:      dash,
		Hub:            hub,
		LabelZone:      config.LabelZone,
		RefreshTimeout: 3 * config.Timeout(),
		Caches:         caches,
		Logger:         logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial mount: geolocate once the server is up
	go func() {
		initCtx, cancel := context.WithTimeout(ctx, 3*config.Timeout())
		defer cancel()
		if _, err := dash.Locate(initCtx); err != nil {
			logger.Warn("initial locate failed", "error", err)
		}
	}()

	stopCollector := func() {}
	if *refreshInterval > 0 {
		c := collector.NewCollector(dash, *refreshInterval, logger)
		c.SetFetchTimeout(3 * config.Timeout())
		stopCollector = c.Start(ctx)
		logger.Info("background refresh enabled", "interval", *refreshInterval)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		stopCollector()
		return err
	}

	stopCollector()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
