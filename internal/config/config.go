package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr      = ":8080"
	defaultDBPath          = "qdevice.db"
	defaultExecutor        = "stub"
	defaultNATSSubject     = "qdevice.jobs"
	defaultDeviceName      = "qdevice"
	defaultQubits          = 64
	defaultExecutorTimeout = 5 * time.Minute

	envConfigFile      = "QDEVICE_CONFIG"
	envListenAddr      = "QDEVICE_LISTEN_ADDR"
	envDBPath          = "QDEVICE_DB_PATH"
	envLogLevel        = "QDEVICE_LOG_LEVEL"
	envExecutor        = "QDEVICE_EXECUTOR"
	envExecutorCommand = "QDEVICE_EXECUTOR_CMD"
	envExecutorAddr    = "QDEVICE_EXECUTOR_ADDR"
	envExecutorTimeout = "QDEVICE_EXECUTOR_TIMEOUT"
	envNATSURL         = "QDEVICE_NATS_URL"
	envNATSSubject     = "QDEVICE_NATS_SUBJECT"
	envDeviceName      = "QDEVICE_DEVICE_NAME"
	envDefaultQubits   = "QDEVICE_DEFAULT_QUBITS"
)

// Config holds application configuration loaded from an optional YAML file
// and environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// Executor names the registered executor jobs run on: stub, process or
	// remote.
	Executor        string
	ExecutorCommand []string
	ExecutorAddr    string
	ExecutorTimeout time.Duration

	// NATSURL enables completion events when set.
	NATSURL     string
	NATSSubject string

	DeviceName    string
	DefaultQubits int32
}

// fileConfig is the YAML layout of a configuration file.
type fileConfig struct {
	ListenAddr      string   `yaml:"listen_addr"`
	DBPath          string   `yaml:"db_path"`
	LogLevel        string   `yaml:"log_level"`
	Executor        string   `yaml:"executor"`
	ExecutorCommand []string `yaml:"executor_command"`
	ExecutorAddr    string   `yaml:"executor_addr"`
	ExecutorTimeout string   `yaml:"executor_timeout"`
	NATSURL         string   `yaml:"nats_url"`
	NATSSubject     string   `yaml:"nats_subject"`
	DeviceName      string   `yaml:"device_name"`
	DefaultQubits   int32    `yaml:"default_qubits"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:      defaultListenAddr,
		DBPath:          defaultDBPath,
		LogLevel:        slog.LevelInfo,
		Executor:        defaultExecutor,
		ExecutorTimeout: defaultExecutorTimeout,
		NATSSubject:     defaultNATSSubject,
		DeviceName:      defaultDeviceName,
		DefaultQubits:   defaultQubits,
	}
}

// Load builds the configuration: defaults, then the YAML file named by path
// or QDEVICE_CONFIG, then environment variables. Environment wins.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(envConfigFile)
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.ListenAddr, f.ListenAddr)
	setString(&c.DBPath, f.DBPath)
	setString(&c.Executor, f.Executor)
	setString(&c.ExecutorAddr, f.ExecutorAddr)
	setString(&c.NATSURL, f.NATSURL)
	setString(&c.NATSSubject, f.NATSSubject)
	setString(&c.DeviceName, f.DeviceName)
	if f.LogLevel != "" {
		c.LogLevel = parseLogLevel(f.LogLevel)
	}
	if len(f.ExecutorCommand) > 0 {
		c.ExecutorCommand = f.ExecutorCommand
	}
	if f.ExecutorTimeout != "" {
		d, err := time.ParseDuration(f.ExecutorTimeout)
		if err != nil {
			return fmt.Errorf("config file %s: executor_timeout: %w", path, err)
		}
		c.ExecutorTimeout = d
	}
	if f.DefaultQubits > 0 {
		c.DefaultQubits = f.DefaultQubits
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.ListenAddr, os.Getenv(envListenAddr))
	setString(&c.DBPath, os.Getenv(envDBPath))
	setString(&c.Executor, os.Getenv(envExecutor))
	setString(&c.ExecutorAddr, os.Getenv(envExecutorAddr))
	setString(&c.NATSURL, os.Getenv(envNATSURL))
	setString(&c.NATSSubject, os.Getenv(envNATSSubject))
	setString(&c.DeviceName, os.Getenv(envDeviceName))

	if v := os.Getenv(envLogLevel); v != "" {
		c.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envExecutorCommand); v != "" {
		c.ExecutorCommand = strings.Fields(v)
	}
	if v := os.Getenv(envExecutorTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envExecutorTimeout, err)
		}
		c.ExecutorTimeout = d
	}
	if v := os.Getenv(envDefaultQubits); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 1 {
			return fmt.Errorf("%s: invalid qubit count %q", envDefaultQubits, v)
		}
		c.DefaultQubits = int32(n)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
