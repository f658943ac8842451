package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Host         string        `env:"CHAT_HOST"`
	Port         int           `env:"CHAT_PORT,default=1234" validate:"min=1,max=65535"`
	Addr         string        `validate:"omitempty,hostname_port"`
	MetricsAddr  string        `env:"CHAT_METRICS_ADDR,default=:9090" validate:"omitempty,hostname_port"`
	WriteTimeout time.Duration `env:"CHAT_WRITE_TIMEOUT,default=10s" validate:"gte=0"`
	LogLevel     string        `env:"CHAT_LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	LogFormat    string        `env:"CHAT_LOG_FORMAT,default=json" validate:"oneof=json text"`
}

var validate = validator.New()

// loadConfig reads the environment, then applies command-line overrides.
func loadConfig(environ, args []string) (Config, error) {
	var cfg Config

	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}
	if err := env.Unmarshal(es, &cfg); err != nil {
		return cfg, fmt.Errorf("config error: %w", err)
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", "", "chat listen address, overrides CHAT_HOST/CHAT_PORT")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "metrics listen address, empty to disable")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ListenAddr is the chat listen address.
func (c Config) ListenAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) Logger() *slog.Logger {
	var level slog.Level
	// validated by loadConfig
	_ = level.UnmarshalText([]byte(c.LogLevel))

	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
