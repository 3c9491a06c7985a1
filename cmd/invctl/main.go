// Command invctl is the command-line client for the InventoryHub API: it
// signs in, lists and creates groups, and joins or leaves them through the
// same membership protocol the server runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var build = "dev"

type config struct {
	conf.Version
	API         string        `conf:"default:http://localhost:8080,help:base URL of the InventoryHub API"`
	Dir         string        `conf:"help:session cache directory (defaults to the user config dir)"`
	Timeout     time.Duration `conf:"default:15s,help:per-request timeout"`
	SettleDelay time.Duration `conf:"default:500ms,help:pause between a membership write and the counter update"`
	Name        string        `conf:"help:display name for register"`
	Mail        string        `conf:"help:account mail for login and register"`
	Password    string        `conf:"noprint,help:account password for login and register"`
	Debug       bool          `conf:"default:false,help:log API traffic to stderr"`
	Args        conf.Args
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "invctl:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg := config{Version: conf.Version{Build: build, Desc: "InventoryHub command-line client"}}
	help, err := conf.Parse("INVCTL", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			fmt.Println(usage())
			return nil
		}
		return fmt.Errorf("parse config: %w", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("locate config dir: %w", err)
		}
		cfg.Dir = filepath.Join(base, "invctl")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(cfg, os.Stdout, logger)
	if err != nil {
		return err
	}
	return s.dispatch(ctx, cfg, cfg.Args)
}

// newLogger writes warnings to stderr, or everything with debug.
func newLogger(debug bool) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.OutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}
