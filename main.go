package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tidb-pool/logger"
	"tidb-pool/model"
	"tidb-pool/service"
)

const (
	exitPool   = 1
	exitConfig = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		if errors.Is(err, model.ErrInvalidConfig) {
			os.Exit(exitConfig)
		}
		os.Exit(exitPool)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TIDBPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "tidbpool",
		Short:         "Build a TiDB connection pool from a configuration document",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := root.PersistentFlags()
	flags.String("config", "config.toml", "pool configuration document (.toml, .yaml or .yml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "console", "log format: json or console")
	flags.String("log-output", "stderr", "log destination: stdout, stderr or file")
	flags.String("log-file", "", "log file path, rotated, used with --log-output=file")
	root.PersistentPreRunE = func(*cobra.Command, []string) error {
		return errors.Wrap(v.BindPFlags(flags), "bind flags")
	}

	root.AddCommand(newCheckCmd(v), newConfigCmd(v))
	return root
}

func newLogger(v *viper.Viper) (*zap.Logger, error) {
	log, err := logger.NewZapLogger(logger.Config{
		Level:    v.GetString("log-level"),
		Format:   v.GetString("log-format"),
		Output:   v.GetString("log-output"),
		FilePath: v.GetString("log-file"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	if err := mysql.SetLogger(logger.MySQLLogger(log)); err != nil {
		return nil, errors.Wrap(err, "install driver logger")
	}
	return log, nil
}

func newCheckCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Build the pool, connect and report the server version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger(v)
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg, err := model.LoadFile(v.GetString("config"))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := service.BuildPoolFromConfig(ctx, cfg.TiDB, service.WithLogger(log))
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pool.Ping(ctx); err != nil {
				return err
			}
			version, err := pool.Version(ctx)
			if err != nil {
				log.Warn("could not retrieve version", zap.Error(err))
				version = "unknown"
			}

			s := pool.Settings()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "connected to TiDB %s at %s (lazy: %v)\n", version, pool.Addr(), pool.Lazy())
			fmt.Fprintf(out, "  max connections: %d\n", s.MaxConnections)
			fmt.Fprintf(out, "  min connections: %d\n", s.MinConnections)
			fmt.Fprintf(out, "  acquire timeout: %s\n", s.AcquireTimeout)
			fmt.Fprintf(out, "  idle timeout:    %s\n", s.IdleTimeout)
			fmt.Fprintf(out, "  max lifetime:    %s\n", s.MaxLifetime)
			return printPoolMetrics(out, pool.Collector())
		},
	}
}

// printPoolMetrics gathers c through a private registry and prints one
// line per sample.
func printPoolMetrics(out io.Writer, c prometheus.Collector) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return errors.Wrap(err, "register pool collector")
	}
	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "gather pool metrics")
	}

	fmt.Fprintln(out, "  metrics:")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			value := m.GetGauge().GetValue()
			if mf.GetType().String() == "COUNTER" {
				value = m.GetCounter().GetValue()
			}
			fmt.Fprintf(out, "    %s %g\n", mf.GetName(), value)
		}
	}
	return nil
}

func newConfigCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with the password redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := model.LoadFile(v.GetString("config"))
			if err != nil {
				return err
			}

			var data []byte
			switch format, _ := cmd.Flags().GetString("format"); format {
			case "toml":
				data, err = model.EncodeTOML(cfg.Redacted())
			case "yaml":
				data, err = model.EncodeYAML(cfg.Redacted())
			default:
				return errors.Errorf("unknown output format %q", format)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().String("format", "toml", "output format: toml or yaml")
	return cmd
}
