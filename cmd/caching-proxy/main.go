package main

import (
	"errors"
	"io"
	"net"
	"net/http"
	"os"

	cachingproxy "github.com/always-cache/caching-proxy"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// this is set by goreleaser
var version string

func main() {
	if version == "" {
		version = "DEV"
	}

	config, port, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, errUsage) {
		os.Exit(1)
	}

	// set log level
	logLevel := zerolog.DebugLevel
	if config.Trace {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if config.LogFile != "" {
		if logFileOutput, err := os.OpenFile(config.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	cacheProvider, err := newCache(config)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create cache")
	}

	proxy := cachingproxy.CreateProxy(cachingproxy.Config{
		Cache:          cacheProvider,
		MaxLine:        config.MaxLine,
		UserAgent:      config.UserAgent,
		DialTimeout:    config.DialTimeout,
		MaxConnections: config.MaxConnections,
	})

	if config.Admin != "" {
		go func() {
			log.Info().Msgf("Admin interface on %s", config.Admin)
			if err := http.ListenAndServe(config.Admin, proxy.AdminHandler()); err != nil {
				log.Error().Err(err).Msg("Admin server stopped")
			}
		}()
	}

	log.Info().
		Str("provider", config.Provider).
		Int("maxObjectSize", config.MaxObjectSize).
		Int("maxObjects", config.Limits.MaxObjectCount()).
		Msgf("Proxying on port %s", port)
	err = proxy.ListenAndServe(net.JoinHostPort("", port))

	if err != nil {
		log.Fatal().Err(err).Msg("Proxy stopped")
	}
}
