package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto"
)

func newPubCmd(flags *globalFlags) *cobra.Command {
	var (
		retain bool
		binary bool
	)
	cmd := &cobra.Command{
		Use:   "pub <topic> <message>",
		Short: "Publish a single message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return publish(ctx, cfg, log, args[0], []byte(args[1]), retain, binary)
		},
	}
	cmd.Flags().BoolVarP(&retain, "retain", "r", false, "ask the broker to retain the message")
	cmd.Flags().BoolVar(&binary, "binary", false, "allow NUL bytes in the payload")
	return cmd
}

func publish(ctx context.Context, cfg *Config, log *zap.Logger, topic string, payload []byte, retain, binary bool) error {
	s, err := dial(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer s.close()

	opts := []mosquitto.PublishOption{mosquitto.WithQoS(cfg.QoS)}
	if retain {
		opts = append(opts, mosquitto.WithRetain())
	}
	if binary {
		opts = append(opts, mosquitto.WithBinaryPayload())
	}
	if err := s.client.Publish(ctx, topic, payload, opts...); err != nil {
		return err
	}
	log.Info("published", zap.String("topic", topic), zap.Int("bytes", len(payload)), zap.Int("qos", cfg.QoS))
	return nil
}
