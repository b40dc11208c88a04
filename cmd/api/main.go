package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"resource-summary-ui/internal/config"
	httpapi "resource-summary-ui/internal/http"
	"resource-summary-ui/internal/querylabel"
)

var version = "dev"

type app struct {
	verbose bool
	cfg     config.Config
	logger  *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:     "resource-summary-ui",
		Short:   "Resource Summary backend for span performance data",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.logger != nil {
				return nil
			}
			a.cfg = config.FromEnv()
			logger, err := buildLogger(a.verbose || strings.EqualFold(a.cfg.LogLevel, "debug"))
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and Resource Summary page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	root.RunE = serve.RunE
	root.AddCommand(serve, newLabelCmd())
	return root
}

func newLabelCmd() *cobra.Command {
	var reverse bool
	cmd := &cobra.Command{
		Use:   "label [--reverse] [--] <index>...",
		Short: "Print query symbol labels for indices (or indices for labels with --reverse)",
		Example: `  api label 0 25 26
  api label -r aa zz
  api label -1          # rejected as an invalid index, not as an unknown flag`,
		Args: cobra.MinimumNArgs(1),
		// Negative indices look like shorthand flags to pflag, so the few
		// flags this command has are read by labelArgs instead.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, raw []string) error {
			args, err := labelArgs(raw, &reverse)
			if errors.Is(err, pflag.ErrHelp) {
				return cmd.Help()
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, arg := range args {
				if reverse {
					idx, err := querylabel.Index(arg)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s\t%d\n", arg, idx)
					continue
				}
				idx, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("index must be an integer: %q", arg)
				}
				label, err := querylabel.Label(idx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d\t%s\n", idx, label)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "map labels back to indices")
	return cmd
}

// labelArgs separates --reverse and --help from positional arguments. Any
// other dash-prefixed value, such as -1, stays positional.
func labelArgs(raw []string, reverse *bool) ([]string, error) {
	args := make([]string, 0, len(raw))
	for i, arg := range raw {
		switch {
		case arg == "--":
			args = append(args, raw[i+1:]...)
			return checkLabelArgs(args)
		case arg == "-r", arg == "--reverse":
			*reverse = true
		case strings.HasPrefix(arg, "--reverse="):
			v, err := strconv.ParseBool(strings.TrimPrefix(arg, "--reverse="))
			if err != nil {
				return nil, fmt.Errorf("invalid value for --reverse: %q", arg)
			}
			*reverse = v
		case arg == "-h", arg == "--help":
			return nil, pflag.ErrHelp
		default:
			args = append(args, arg)
		}
	}
	return checkLabelArgs(args)
}

func checkLabelArgs(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.New("requires at least 1 index or label")
	}
	return args, nil
}

func buildLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func (a *app) serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg
	srv, err := httpapi.NewServer(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting API server",
			zap.String("version", version),
			zap.String("addr", cfg.ListenAddr),
			zap.Bool("db_enabled", cfg.DBEnabled),
			zap.Bool("profiling_enabled", cfg.ProfilingEnabled),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
