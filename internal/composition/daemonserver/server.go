// Package daemonserver wires the stealth service to its RPC transport.
package daemonserver

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"shadowvest/go-backend/internal/adapters/rpc"
	"shadowvest/go-backend/internal/app"
	"shadowvest/go-backend/internal/config"
	"shadowvest/go-backend/internal/metrics"
)

// Daemon owns the service and its server for one process lifetime.
type Daemon struct {
	Server  *rpc.Server
	Service *app.Service
	Logger  *slog.Logger
}

// New builds the logger, metrics, service and RPC server from cfg. Logs go
// to logOut (stdout when nil).
func New(cfg config.Config, logOut io.Writer) (*Daemon, error) {
	logger := app.NewLogger(cfg.Log, logOut)
	m := metrics.New()
	svc, err := app.NewService(cfg, logger, m)
	if err != nil {
		return nil, err
	}
	return &Daemon{
		Server:  rpc.NewServer(cfg.RPC, svc, logger, m),
		Service: svc,
		Logger:  logger,
	}, nil
}

// Run serves until ctx is done and always closes the service afterwards.
func (d *Daemon) Run(ctx context.Context) error {
	runErr := d.Server.Run(ctx)
	closeErr := d.Service.Close()
	return errors.Join(runErr, closeErr)
}
