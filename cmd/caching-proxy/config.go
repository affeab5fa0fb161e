package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/always-cache/caching-proxy/cache"
	rewriter "github.com/always-cache/caching-proxy/pkg/header-rewriter"
	requestline "github.com/always-cache/caching-proxy/pkg/request-line"

	"gopkg.in/yaml.v3"
)

var errUsage = errors.New("usage")

type Config struct {
	cache.Limits   `yaml:",inline"`
	MaxLine        int           `yaml:"maxLine"`
	Provider       string        `yaml:"provider"`
	DB             string        `yaml:"db"`
	UserAgent      string        `yaml:"userAgent"`
	Admin          string        `yaml:"admin"`
	MaxConnections int           `yaml:"maxConnections"`
	DialTimeout    time.Duration `yaml:"dialTimeout"`
	LogFile        string        `yaml:"logFile"`
	Trace          bool          `yaml:"trace"`
}

func defaultConfig() Config {
	return Config{
		Limits:    cache.DefaultLimits(),
		MaxLine:   requestline.DefaultMaxLine,
		Provider:  "memory",
		UserAgent: rewriter.DefaultUserAgent,
	}
}

// getConfig reads a YAML config file on top of the defaults.
func getConfig(filename string) (Config, error) {
	config := defaultConfig()
	if filename == "" {
		return config, nil
	}
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}

// parseArgs parses the command line into the final config and the port to
// listen on. Flags that are set explicitly override the config file.
func parseArgs(args []string, output io.Writer) (Config, string, error) {
	fs := flag.NewFlagSet("caching-proxy", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "usage: %s [flags] <port>\n", fs.Name())
		fs.PrintDefaults()
	}

	defaults := defaultConfig()
	var (
		configFilename = fs.String("config", "", "Path to YAML config file")
		flagged        Config
	)
	fs.StringVar(&flagged.Provider, "provider", defaults.Provider, "Cache provider to use (memory or sqlite)")
	fs.StringVar(&flagged.DB, "db", "", "SQLite db file for the sqlite provider (in-memory if empty)")
	fs.StringVar(&flagged.Admin, "admin", "", "Address for the admin HTTP server (disabled if empty)")
	fs.IntVar(&flagged.MaxCacheSize, "max-cache-size", defaults.MaxCacheSize, "Total cache budget in bytes")
	fs.IntVar(&flagged.MaxObjectSize, "max-object-size", defaults.MaxObjectSize, "Largest cacheable response in bytes")
	fs.IntVar(&flagged.MaxLine, "max-line", defaults.MaxLine, "Longest accepted request or header line")
	fs.IntVar(&flagged.MaxConnections, "max-conns", 0, "Maximum concurrent connections (0 = unbounded)")
	fs.DurationVar(&flagged.DialTimeout, "dial-timeout", 0, "Timeout for connecting to origins (0 = none)")
	fs.BoolVar(&flagged.Trace, "vv", false, "Verbosity: trace logging")
	fs.StringVar(&flagged.LogFile, "log-file", "", "Log file to use (in addition to stdout)")

	if err := fs.Parse(args); err != nil {
		return Config{}, "", fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return Config{}, "", errUsage
	}
	port := fs.Arg(0)
	if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
		fs.Usage()
		return Config{}, "", fmt.Errorf("%w: invalid port %q", errUsage, port)
	}

	config, err := getConfig(*configFilename)
	if err != nil {
		return config, port, fmt.Errorf("reading config %s: %w", *configFilename, err)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "provider":
			config.Provider = flagged.Provider
		case "db":
			config.DB = flagged.DB
		case "admin":
			config.Admin = flagged.Admin
		case "max-cache-size":
			config.MaxCacheSize = flagged.MaxCacheSize
		case "max-object-size":
			config.MaxObjectSize = flagged.MaxObjectSize
		case "max-line":
			config.MaxLine = flagged.MaxLine
		case "max-conns":
			config.MaxConnections = flagged.MaxConnections
		case "dial-timeout":
			config.DialTimeout = flagged.DialTimeout
		case "vv":
			config.Trace = flagged.Trace
		case "log-file":
			config.LogFile = flagged.LogFile
		}
	})
	return config, port, config.Limits.Validate()
}

// newCache creates the configured cache provider.
func newCache(config Config) (cache.CacheProvider, error) {
	switch config.Provider {
	case "memory", "":
		return cache.NewMemCache(config.Limits), nil
	case "sqlite":
		return cache.NewSQLiteCache(config.DB, config.Limits)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", config.Provider)
	}
}
