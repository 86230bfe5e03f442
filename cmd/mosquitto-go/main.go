// Command mosquitto-go publishes and subscribes through libmosquitto.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto"
)

type globalFlags struct {
	configPath string
	host       string
	port       int
	clientID   string
	qos        int
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:          "mosquitto-go",
		Short:        "MQTT publish/subscribe client backed by libmosquitto",
		SilenceUsage: true,
	}

	flags.bind(root.PersistentFlags())

	root.AddCommand(
		newVersionCmd(),
		newPubCmd(&flags),
		newSubCmd(&flags),
	)
	return root
}

func (f *globalFlags) bind(pf *pflag.FlagSet) {
	pf.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	pf.StringVarP(&f.host, "host", "H", "", "broker host (overrides config)")
	pf.IntVarP(&f.port, "port", "p", 0, "broker port (overrides config)")
	pf.StringVarP(&f.clientID, "client-id", "i", "", "client id (default: random)")
	pf.IntVarP(&f.qos, "qos", "q", 0, "QoS level 0-2 (overrides config)")
	pf.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
}

// load resolves the effective configuration for cmd.
func (f *globalFlags) load(cmd *cobra.Command) (*Config, error) {
	cfg, err := LoadConfig(f.configPath, os.Getenv)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("host") {
		cfg.Broker.Host = f.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Broker.Port = f.port
	}
	if cmd.Flags().Changed("client-id") {
		cfg.ClientID = f.clientID
	}
	if cmd.Flags().Changed("qos") {
		cfg.QoS = f.qos
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		var err error
		if lvl, err = zapcore.ParseLevel(level); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print wrapper and libmosquitto versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mosquitto-go %s\n", mosquitto.WrapperVersion())
			fmt.Fprintf(out, "built against libmosquitto %s\n", mosquitto.BuiltAgainst())
			v, err := mosquitto.LibraryVersion()
			switch {
			case errors.Is(err, mosquitto.ErrNotBuilt):
				fmt.Fprintln(out, "libmosquitto: not linked (build with -tags mosquitto)")
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "libmosquitto %s\n", v)
			}
			return nil
		},
	}
}
