package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

const (
	defaultHost       = "127.0.0.1"
	defaultPort       = 3000
	defaultPreviewMax = 1 * 1024 * 1024
	defaultChunkSize  = 64 * 1024

	envPrefix = "PEEKDIR_"
)

// Config is the immutable process configuration. Root is canonical (absolute,
// symlinks resolved) once Config has been built.
type Config struct {
	Root        string
	Host        string
	Port        int
	PreviewMax  int64
	ChunkSize   int64
	ReadTimeout time.Duration
	Exclude     []string
	LogLevel    string
	LogFormat   string
	Metrics     bool
}

// Addr returns the listen address as host:port
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// cliOptions holds raw flag values before validation
type cliOptions struct {
	root        string
	host        string
	port        int
	previewMax  string
	chunkSize   string
	readTimeout time.Duration
	exclude     []string
	logLevel    string
	logFormat   string
	metrics     bool
}

func (o *cliOptions) register(fs *pflag.FlagSet) {
	fs.StringVar(&o.root, "root", ".", "Directory to serve (sandbox root)")
	fs.StringVar(&o.host, "host", defaultHost, "Host to bind")
	fs.IntVar(&o.port, "port", defaultPort, "Port to listen on")
	fs.StringVar(&o.previewMax, "preview-max", "1MB", "Largest file returned by whole-file previews (e.g. 512KB, 2MB)")
	fs.StringVar(&o.chunkSize, "chunk-size", "64KB", "Default window size for paged previews")
	fs.DurationVar(&o.readTimeout, "read-timeout", 0, "Timeout applied to each chunk read (0 disables)")
	fs.StringSliceVar(&o.exclude, "exclude", nil, "Glob patterns hidden from listings and search (repeatable)")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&o.logFormat, "log-format", "console", "Log format: console or json")
	fs.BoolVar(&o.metrics, "metrics", true, "Expose Prometheus metrics on /metrics")
}

// applyEnvDefaults fills every flag the user did not pass on the command line
// from PEEKDIR_<NAME>, e.g. --preview-max from PEEKDIR_PREVIEW_MAX.
func applyEnvDefaults(fs *pflag.FlagSet) error {
	var firstErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || firstErr != nil {
			return
		}
		v, ok := os.LookupEnv(envKey(f.Name))
		if !ok {
			return
		}
		if err := fs.Set(f.Name, v); err != nil {
			firstErr = fmt.Errorf("invalid %s: %w", envKey(f.Name), err)
		}
	})
	return firstErr
}

func envKey(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// config validates the raw options and produces the process Config
func (o *cliOptions) config() (Config, error) {
	previewMax, err := parseBytes(o.previewMax)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --preview-max: %w", err)
	}
	if previewMax <= 0 {
		previewMax = defaultPreviewMax
	}

	chunkSize, err := parseBytes(o.chunkSize)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --chunk-size: %w", err)
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	if o.readTimeout < 0 {
		return Config{}, errors.New("--read-timeout must be >= 0")
	}

	root, err := canonicalRoot(o.root)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Root:        root,
		Host:        o.host,
		Port:        o.port,
		PreviewMax:  previewMax,
		ChunkSize:   chunkSize,
		ReadTimeout: o.readTimeout,
		Exclude:     o.exclude,
		LogLevel:    o.logLevel,
		LogFormat:   o.logFormat,
		Metrics:     o.metrics,
	}, nil
}

// canonicalRoot makes root absolute, checks that it is an existing directory
// and resolves symlinks so later prefix checks compare canonical paths.
func canonicalRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", errors.New("--root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("root not accessible: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("root not accessible: %w", err)
	}
	if !info.IsDir() {
		return "", errors.New("root path must be a directory")
	}
	return resolved, nil
}

// parseBytes parses a size with an optional unit: 1024, 1KB, 2K, 1.5MB, 1G
func parseBytes(input string) (int64, error) {
	value := strings.TrimSpace(strings.ToUpper(input))
	if value == "" {
		return 0, errors.New("empty size")
	}

	multiplier := int64(1)
	for _, suffix := range []struct {
		s string
		m int64
	}{
		{"KB", 1024},
		{"K", 1024},
		{"MB", 1024 * 1024},
		{"M", 1024 * 1024},
		{"GB", 1024 * 1024 * 1024},
		{"G", 1024 * 1024 * 1024},
		{"B", 1},
	} {
		if strings.HasSuffix(value, suffix.s) {
			multiplier = suffix.m
			value = strings.TrimSuffix(value, suffix.s)
			break
		}
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("invalid size")
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if parsed < 0 {
		return 0, errors.New("size must be >= 0")
	}
	return int64(parsed * float64(multiplier)), nil
}
