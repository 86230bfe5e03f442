package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto"
	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/logging"
)

const connackTimeout = 10 * time.Second

// session is a connected client running the native background loop.
type session struct {
	client *mosquitto.Client
	log    *zap.Logger
}

// dial opens a client, installs handlers via setup, connects and waits for
// the broker's CONNACK. Handlers must be installed by setup because they
// cannot be changed once the loop runs.
func dial(ctx context.Context, cfg *Config, log *zap.Logger, setup func(*mosquitto.Client) error) (*session, error) {
	client, err := mosquitto.Open(cfg.ClientID,
		mosquitto.WithLogger(logging.NewZap(log)),
		mosquitto.WithCleanSession(cfg.cleanSession()),
	)
	if err != nil {
		return nil, err
	}
	s := &session{client: client, log: log}

	if err := cfg.configure(client); err != nil {
		s.close()
		return nil, err
	}

	connacked := make(chan int, 1)
	if err := client.SetConnectHandler(func(rc int) {
		select {
		case connacked <- rc:
		default:
		}
	}); err != nil {
		s.close()
		return nil, err
	}
	if err := client.SetDisconnectHandler(func(rc int) {
		if rc != 0 {
			log.Warn("unexpected disconnect", zap.Int("rc", rc))
		}
	}); err != nil {
		s.close()
		return nil, err
	}
	if setup != nil {
		if err := setup(client); err != nil {
			s.close()
			return nil, err
		}
	}

	if err := client.Connect(ctx, cfg.Broker.Host, cfg.Broker.Port, cfg.Broker.KeepAlive); err != nil {
		s.close()
		return nil, err
	}
	if err := client.LoopStart(); err != nil {
		s.close()
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, connackTimeout)
	defer cancel()
	select {
	case rc := <-connacked:
		if rc != 0 {
			s.close()
			return nil, fmt.Errorf("broker refused connection (rc %d)", rc)
		}
	case <-waitCtx.Done():
		s.close()
		return nil, fmt.Errorf("waiting for CONNACK: %w", waitCtx.Err())
	}
	log.Info("connected", zap.String("host", cfg.Broker.Host), zap.Int("port", cfg.Broker.Port), zap.String("client_id", cfg.ClientID))
	return s, nil
}

// close disconnects, lets the loop drain and releases the client.
func (s *session) close() {
	if err := s.client.Disconnect(); err == nil {
		if err := s.client.LoopStop(false); err != nil {
			s.log.Debug("loop stop", zap.Error(err))
		}
	}
	if err := s.client.Close(); err != nil {
		s.log.Warn("close", zap.Error(err))
	}
}
