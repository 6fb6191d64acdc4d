package nodeagent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shadowvest/go-backend/internal/config"
)

type DoctorInput struct {
	Config   config.Config
	RPCAddr  string
	RPCToken string
	// CheckListen tests that Config.RPC.Addr can be bound, i.e. no daemon
	// is running yet.
	CheckListen bool
}

type DoctorCheck struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}

type DoctorReport struct {
	Ready     bool          `json:"ready"`
	Checks    []DoctorCheck `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (s *Service) Doctor(ctx context.Context, input DoctorInput) DoctorReport {
	report := DoctorReport{
		Ready:     true,
		Checks:    make([]DoctorCheck, 0, 8),
		CheckedAt: s.now(),
	}
	appendCheck := func(name string, err error) {
		c := DoctorCheck{Name: name, Pass: err == nil}
		if err != nil {
			c.Reason = err.Error()
			report.Ready = false
		}
		report.Checks = append(report.Checks, c)
	}
	cfg := input.Config

	appendCheck("config_valid", cfg.Validate())
	appendCheck("signing_key_configured", signingKeyCheck(cfg))
	if path := strings.TrimSpace(cfg.Keystore.Path); path != "" {
		appendCheck("keystore_dir_writable", dirWritable(filepath.Dir(path)))
	}
	if path := strings.TrimSpace(cfg.Registry.Path); path != "" {
		appendCheck("registry_dir_writable", dirWritable(filepath.Dir(path)))
	}
	if cfg.Ledger.Backend == config.LedgerBadger {
		appendCheck("ledger_dir_writable", dirWritable(cfg.Ledger.Path))
	}
	if input.CheckListen {
		appendCheck("rpc_addr_available", checkAddrAvailable(cfg.RPC.Addr))
	}
	if strings.TrimSpace(input.RPCAddr) != "" {
		st := s.Status(ctx, input.RPCAddr, input.RPCToken)
		var err error
		if st.Service == nil {
			err = errors.New(st.LastError)
		}
		appendCheck("rpc_reachable", err)
	}
	return report
}

func signingKeyCheck(cfg config.Config) error {
	if len(cfg.Service.SigningKey) == 0 {
		return config.ErrSigningKeyMissing
	}
	return nil
}

// dirWritable creates dir when missing and probes it with a temp file.
func dirWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func checkAddrAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s is unavailable: %w", addr, err)
	}
	return ln.Close()
}
