package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/blecentral/central"
	"github.com/srg/blecentral/internal/devicefactory"
	"github.com/srg/blecentral/internal/gatt"
	"github.com/srg/blecentral/pkg/config"
)

// centralService is a Central service owned by one command run.
type centralService interface {
	central.Service
	Close() error
}

// newCentralService opens the platform radio.
// This is a variable so that it can be overridden in tests.
var newCentralService = func(logger *logrus.Logger, cfg *config.Config) (centralService, error) {
	return devicefactory.NewCentral(logger, cfg.CentralOptions())
}

// session bundles what every command needs: config, logger, service.
type session struct {
	cfg    *config.Config
	logger *logrus.Logger
	svc    centralService
}

// loadConfig reads --config, if given, and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("scan-once") {
		cfg.ScanOnce, _ = flags.GetBool("scan-once")
	}
	if flags.Changed("connect") {
		cfg.Connect, _ = flags.GetBool("connect")
	}
	if flags.Changed("allow-duplicates") {
		cfg.AllowDuplicates, _ = flags.GetBool("allow-duplicates")
	}
	if flags.Changed("scan-timeout") {
		cfg.ScanTimeout, _ = flags.GetDuration("scan-timeout")
	}
	if flags.Changed("connect-timeout") {
		cfg.ConnectTimeout, _ = flags.GetDuration("connect-timeout")
	}
	if noColor, _ := flags.GetBool("no-color"); noColor {
		cfg.Color = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSession validates flags, configures logging and opens the radio.
// Usage is silenced once flags are accepted.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	svc, err := newCentralService(logger, cfg)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, svc: svc}, nil
}

func (s *session) close() {
	if err := s.svc.Close(); err != nil {
		s.logger.WithError(err).Warn("Failed to close Central service")
	}
}

// listener writes protocol lines to the command's writers and runs the GATT
// prompt on the command's input.
func (s *session) listener(cmd *cobra.Command) *central.Listener {
	l := central.NewListener(s.logger)
	l.Out = cmd.OutOrStdout()
	l.Err = cmd.ErrOrStderr()
	l.GattLoop = func(ctx context.Context, end *gatt.ClientEnd) error {
		return gatt.StartLoop(ctx, end, &gatt.LoopOptions{
			In:     cmd.InOrStdin(),
			Out:    l.Out,
			Logger: s.logger,
			Prompt: gatt.DefaultPrompt,
			Color:  s.cfg.Color,
		})
	}
	return l
}

func (s *session) state() *central.ClientState {
	return central.NewClientState(s.svc,
		central.WithScanOnce(s.cfg.ScanOnce),
		central.WithAutoConnect(s.cfg.Connect))
}

// interruptible returns a context cancelled on Ctrl+C or SIGTERM.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(cmd.Context())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nCtrl+C pressed, stopping...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// finish maps a session result to the command result. A terminated session
// is a normal exit.
func (s *session) finish(err error) error {
	if errors.Is(err, central.ErrTerminated) {
		s.logger.WithError(err).Debug("Session terminated")
		return nil
	}
	return err
}
