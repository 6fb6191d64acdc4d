package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"shadowvest/go-backend/internal/composition/daemonserver"
	"shadowvest/go-backend/internal/config"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	rpcAddr := flag.String("rpc-addr", "", "JSON-RPC listen address override")
	flag.Parse()
	if *showVersion {
		fmt.Printf("stealthd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}
	if *rpcAddr != "" {
		_ = os.Setenv("SV_RPC_ADDR", *rpcAddr)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("stealthd config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := daemonserver.New(cfg, os.Stdout)
	if err != nil {
		log.Fatalf("stealthd failed to initialize: %v", err)
	}
	d.Logger.Info("stealthd starting", "component", "daemon", "version", version)
	if err := d.Run(ctx); err != nil {
		log.Fatalf("stealthd failed: %v", err)
	}
	d.Logger.Info("stealthd stopped", "component", "daemon")
}
