// Package cli implements the midibridge command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leandrodaf/midibridge/internal/config"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/leandrodaf/midibridge/sdk/midi"
	"github.com/spf13/cobra"
)

// app carries what the subcommands share after flags were parsed.
type app struct {
	configPath string
	provider   string
	logLevel   string
	logger     contracts.Logger

	cfg *config.Config
}

// NewRootCommand builds the command tree. A non-nil logger replaces the
// default zap logger.
func NewRootCommand(version string, logger contracts.Logger) *cobra.Command {
	a := &app{logger: logger}

	root := &cobra.Command{
		Use:           "midibridge",
		Short:         "Install MIDI instruments and forward MIDI events",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.provider != "" {
				cfg.Provider = a.provider
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default "+config.FilePath()+")")
	flags.StringVar(&a.provider, "provider", "", "instrument provider: http(s) URL or directory")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newListCommand(a),
		newInstallCommand(a),
		newForwardCommand(a),
		newDevicesCommand(a),
	)
	return root
}

// Execute runs the CLI until completion or SIGINT/SIGTERM.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCommand(version, nil).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func (a *app) options(extra ...contracts.Option) ([]contracts.Option, error) {
	opts, err := a.cfg.Options()
	if err != nil {
		return nil, err
	}
	if a.logger != nil {
		opts = append(opts, contracts.WithLogger(a.logger))
	}
	return append(opts, extra...), nil
}

func (a *app) bridge() (*midi.Bridge, error) {
	opts, err := a.options()
	if err != nil {
		return nil, err
	}
	return midi.NewBridge(opts...)
}
