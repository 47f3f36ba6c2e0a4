package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/config"
	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/logging"
	"github.com/GriffinCanCode/cosmos-pty/internal/infrastructure/server"
	"github.com/GriffinCanCode/cosmos-pty/internal/providers/terminal"
)

type serveOptions struct {
	configPath string
	host       string
	port       string
	logLevel   string
	dev        bool
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "cosmos-pty",
		Short:         "PTY session multiplexer for the desktop terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newResolveShellCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
			if err != nil {
				return err
			}

			srv, err := server.NewServer(cfg, logger)
			if err != nil {
				logger.Error("Failed to create server", zap.Error(err))
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flags.StringVar(&opts.host, "host", "", "listen host (overrides config)")
	flags.StringVar(&opts.port, "port", "", "listen port (overrides config)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	flags.BoolVar(&opts.dev, "dev", false, "development logging: colored console output at debug level")
	return cmd
}

// load layers explicitly set flags over the file and environment configuration.
func (o *serveOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = o.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = o.port
	}
	if flags.Changed("dev") {
		cfg.Logging.Development = o.dev
		if o.dev && !flags.Changed("log-level") {
			cfg.Logging.Level = "debug"
		}
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, cfg.Validate()
}

func newResolveShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve-shell [name|path]",
		Short: "Print the shell a session would run",
		Long: `Resolve a shell the same way session creation does.

With no argument the platform default chain is used. A bare name must be
on the allow-list and found on PATH; an absolute path must be a regular file.
On failure the error code is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var requested *string
			if len(args) == 1 {
				requested = &args[0]
			}

			shell, err := terminal.ResolveShell(requested)
			if err != nil {
				return fmt.Errorf("%s: %w", terminal.Code(err), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), shell)
			return nil
		},
	}
}
