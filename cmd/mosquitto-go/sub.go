package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto"
)

func newSubCmd(flags *globalFlags) *cobra.Command {
	var (
		count  int
		buffer int
	)
	cmd := &cobra.Command{
		Use:   "sub <pattern> [pattern...]",
		Short: "Subscribe and print received messages",
		Args:  cobra.MinimumNArgs(1),
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
			return subscribe(ctx, cfg, log, cmd.OutOrStdout(), args, count, buffer)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many messages (0 = until interrupted)")
	cmd.Flags().IntVar(&buffer, "buffer", 64, "messages kept when output falls behind; older ones are dropped")
	return cmd
}

func subscribe(ctx context.Context, cfg *Config, log *zap.Logger, out io.Writer, patterns []string, count, buffer int) error {
	if buffer <= 0 {
		return fmt.Errorf("buffer must be > 0, got %d", buffer)
	}
	ch := mosquitto.NewRingChannel(buffer)
	s, err := dial(ctx, cfg, log, func(c *mosquitto.Client) error {
		return c.SetMessageChannel(ch)
	})
	if err != nil {
		return err
	}
	defer s.close()

	for _, p := range patterns {
		if err := s.client.Subscribe(ctx, p, mosquitto.SubscribeQoS(cfg.QoS)); err != nil {
			return err
		}
		log.Info("subscribed", zap.String("pattern", p))
	}

	return printMessages(ctx, ch.Messages(), out, count)
}

// printMessages writes "topic payload" lines until ctx is done, the channel
// closes or count messages have been written.
func printMessages(ctx context.Context, msgs <-chan mosquitto.Message, out io.Writer, count int) error {
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintf(out, "%s %s\n", m.Topic(), m.PayloadString()); err != nil {
				return err
			}
			seen++
			if count > 0 && seen >= count {
				return nil
			}
		}
	}
}
