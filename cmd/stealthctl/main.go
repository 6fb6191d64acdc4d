package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"shadowvest/go-backend/internal/app"
	"shadowvest/go-backend/internal/config"
	"shadowvest/go-backend/internal/crypto/keyenc"
	"shadowvest/go-backend/internal/nodeagent"
	"shadowvest/go-backend/internal/stealth"
)

const (
	exitOK            = 0
	exitInvalidInput  = 10
	exitNetworkFailed = 20
	exitNotOwned      = 30
	exitServiceFailed = 40
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type command func(ctx context.Context, args []string, env *cliEnv) int

var commands = map[string]command{
	"keygen":          runKeygen,
	"keystore-create": runKeystoreCreate,
	"derive":          runDerive,
	"check":           runCheck,
	"sign-claim":      runSignClaim,
	"nullifier":       runNullifier,
	"decrypt":         runDecrypt,
	"scan":            runScan,
	"status":          runStatus,
	"doctor":          runDoctor,
}

type cliEnv struct {
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	env := &cliEnv{stdout: stdout, stderr: stderr}
	if len(args) < 1 {
		env.printUsage()
		return exitInvalidInput
	}
	cmd, ok := commands[args[0]]
	if !ok {
		env.printUsage()
		return exitInvalidInput
	}
	return cmd(ctx, args[1:], env)
}

// keyFlags are the caller-held keys shared by the offline commands. Private
// keys default to the environment so they stay out of shell history.
type keyFlags struct {
	keystore  *string
	spendPub  *string
	spendPriv *string
	viewPriv  *string
}

func addKeyFlags(fs *flag.FlagSet) keyFlags {
	return keyFlags{
		keystore:  fs.String("keystore", os.Getenv("SV_KEYSTORE_PATH"), "keystore path, unlocked with SV_KEYSTORE_PASSPHRASE"),
		spendPub:  fs.String("spend-pub", "", "spend public key (base58 or hex)"),
		spendPriv: fs.String("spend-priv", os.Getenv("SV_SPEND_PRIV"), "spend private key (default $SV_SPEND_PRIV)"),
		viewPriv:  fs.String("view-priv", os.Getenv("SV_VIEW_PRIV"), "view private key (default $SV_VIEW_PRIV)"),
	}
}

func (k keyFlags) ref() (app.KeyRef, error) {
	var ref app.KeyRef
	var err error
	if ref.SpendPub, err = optionalKey("spend-pub", *k.spendPub); err != nil {
		return ref, err
	}
	if ref.SpendPriv, err = optionalKey("spend-priv", *k.spendPriv); err != nil {
		return ref, err
	}
	if ref.ViewPriv, err = optionalKey("view-priv", *k.viewPriv); err != nil {
		return ref, err
	}
	return ref, nil
}

func optionalKey(name, raw string) (*keyenc.KeyParam, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	b, err := keyenc.ParseString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	k := keyenc.KeyParam(b)
	return &k, nil
}

func requiredKey(name, raw string) (keyenc.KeyParam, error) {
	k, err := optionalKey(name, raw)
	if err != nil {
		return keyenc.KeyParam{}, err
	}
	if k == nil {
		return keyenc.KeyParam{}, fmt.Errorf("%s is required", name)
	}
	return *k, nil
}

// offlineService runs the stealth service in-process with a memory ledger.
// Logs go to stderr at warn level so stdout stays machine-readable.
func offlineService(keystorePath string, env *cliEnv) (*app.Service, error) {
	cfg := config.Default()
	cfg.RPC.RequireAuth = false
	cfg.Ledger.Backend = config.LedgerMemory
	cfg.Log = config.LogConfig{Level: "warn", Format: "text"}
	if err := config.ApplyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	cfg.Ledger.Backend = config.LedgerMemory
	cfg.Registry.Path = ""
	cfg.Keystore.Path = strings.TrimSpace(keystorePath)
	return app.NewService(cfg, app.NewLogger(cfg.Log, env.stderr), nil)
}

func withService(keystorePath string, env *cliEnv, fn func(*app.Service) int) int {
	svc, err := offlineService(keystorePath, env)
	if err != nil {
		return env.fail(err.Error(), exitServiceFailed)
	}
	defer func() { _ = svc.Close() }()
	return fn(svc)
}

func runKeygen(ctx context.Context, args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	withMnemonic := fs.Bool("mnemonic", false, "derive keys from a fresh recovery phrase")
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}
	return withService("", env, func(svc *app.Service) int {
		out, err := svc.GenerateMetaKeys(ctx, *withMnemonic)
		return env.result(out, err)
	})
}

func runKeystoreCreate(ctx context.Context, args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("keystore-create", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	path := fs.String("keystore", os.Getenv("SV_KEYSTORE_PATH"), "keystore path")
	mnemonic := fs.String("mnemonic", "", "import this recovery phrase instead of generating one")
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}
	if strings.TrimSpace(*path) == "" {
		return env.fail("keystore path is required", exitInvalidInput)
	}
	passphrase := os.Getenv("SV_KEYSTORE_PASSPHRASE")
	if passphrase == "" {
		return env.fail("SV_KEYSTORE_PASSPHRASE is required", exitInvalidInput)
	}
	return withService(*path, env, func(svc *app.Service) int {
		if strings.TrimSpace(*mnemonic) != "" {
			out, err := svc.ImportKeystore(ctx, *mnemonic, passphrase)
			return env.result(out, err)
		}
		out, err := svc.CreateKeystore(ctx, passphrase)
		return env.result(out, err)
	})
}

func runDerive(ctx context.Context, args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	spendPub := fs.String("spend-pub", "", "recipient spend public key")
	viewPub := fs.String("view-pub", "", "recipient view public key")
	note := fs.String("note", "", "note sealed into the payload")
	format := fs.String("format", "", "payload format: a | b")
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}
	spend, err := requiredKey("spend-pub", *spendPub)
	if err != nil {
		return env.fail(err.Error(), exitInvalidInput)
	}
	view, err := requiredKey("view-pub", *viewPub)
	if err != nil {
		return env.fail(err.Error(), exitInvalidInput)
	}
	return withService("", env, func(svc *app.Service) int {
		out, err := svc.DeriveStealthAddress(ctx, app.DeriveRequest{
			SpendPub: &spend,
			ViewPub:  &view,
			Note:     *note,
			Format:   *format,
		})
		return env.result(out, err)
	})
}

func parseOwnership(fs *flag.FlagSet, args []string, extra func() error) (app.OwnershipRequest, keyFlags, error) {
	address := fs.String("address", "", "stealth address")
	ephemeral := fs.String("ephemeral", "", "ephemeral public key")
	kf := addKeyFlags(fs)
	if err := fs.Parse(args); err != nil {
		return app.OwnershipRequest{}, kf, err
	}
	var req app.OwnershipRequest
	var err error
	if req.StealthAddress, err = requiredKey("address", *address); err != nil {
		return req, kf, err
	}
	if req.EphemeralPub, err = requiredKey("ephemeral", *ephemeral); err != nil {
		return req, kf, err
	}
	if req.Keys, err = kf.ref(); err != nil {
		return req, kf, err
	}
	if extra != nil {
		return req, kf, extra()
	}
	return req, kf, nil
}

func runCheck(ctx context.Context, args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	req, kf, err := parseOwnership(fs, args, nil)
	if err != nil {
		return env.fail(err.Error(), exitInvalidInput)
	}
	return withService(*kf.keystore, env, func(svc *app.Service) int {
		owned, err := svc.CheckOwnership(ctx, req)
		if code := env.result(map[string]any{"owned": owned}, err); code != exitOK {
			return code
		}
		if !owned {
			return exitNotOwned
		}
		return exitOK
	})
}

func runSignClaim(ctx context.Context, args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("sign-claim", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	destination := fs.String("destination", "", "destination public key")
	position := fs.Uint64("position", 0, "position id")
	var dest keyenc.KeyParam
	own, kf, err := parseOwnership(fs, args, func() error {
		var err error
		dest, err = requiredKey("destination", *destination)
		return err
	})
	if err != nil {
		return env.fail(err.Error(), exitInvalidInput)
	}
	return withService(*kf.keystore, env, func(svc *app.Service) int {
		out, err := svc.SignClaim(ctx, app.ClaimRequest{
			StealthAddress: own.StealthAddress,
			EphemeralPub:   own.EphemeralPub,
			Destination:    dest,
			PositionID:     *position,
			Keys:           own.Keys,
		})
		if errors.Is(err, app.ErrNotOwner) {
			return env.fail(err.Error(), exitNotOwned)
		}
		return env.result(out, err)
	})
}

func runNullifier(ctx context.Context, args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("nullifier", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	address := fs.String("address", "", "stealth address")
	position := fs.Uint64("position", 0, "position id")
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}
	addr, err := requiredKey("address", *address)
	if err != nil {
		return env.fail(err.Error(), exitInvalidInput)
	}
	return withService("", env, func(svc *app.Service) int {
		out, err := svc.ComputeNullifier(ctx, app.NullifierRequest{StealthAddress: addr, PositionID: *position})
		return env.result(out, err)
	})
}

func runDecrypt(ctx context.Context, args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("decrypt", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	payloadText := fs.String("payload", "", "encrypted payload")
	ephemeral := fs.String("ephemeral", "", "ephemeral public key")
	format := fs.String("format", "", "payload format: a | b (default sniffed)")
	kf := addKeyFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}
	eph, err := requiredKey("ephemeral", *ephemeral)
	if err != nil {
		return env.fail(err.Error(), exitInvalidInput)
	}
	ref, err := kf.ref()
	if err != nil {
		return env.fail(err.Error(), exitInvalidInput)
	}
	return withService(*kf.keystore, env, func(svc *app.Service) int {
		out, err := svc.DecryptPayload(ctx, app.DecryptRequest{
			Payload:      *payloadText,
			EphemeralPub: eph,
			Format:       *format,
			Keys:         ref,
		})
		return env.result(out, err)
	})
}

func runScan(ctx context.Context, args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	eventsPath := fs.String("events", "-", "JSON array of payment events, - for stdin")
	kf := addKeyFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}
	ref, err := kf.ref()
	if err != nil {
		return env.fail(err.Error(), exitInvalidInput)
	}
	events, err := readEvents(*eventsPath)
	if err != nil {
		return env.fail(err.Error(), exitInvalidInput)
	}
	return withService(*kf.keystore, env, func(svc *app.Service) int {
		out, err := svc.ScanEvents(ctx, app.ScanRequest{Events: events, Keys: ref})
		return env.result(out, err)
	})
}

func readEvents(path string) ([]stealth.PaymentEvent, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	var events []stealth.PaymentEvent
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}

func runStatus(ctx context.Context, args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	rpcAddr := fs.String("rpc-addr", "127.0.0.1:8787", "daemon rpc address host:port")
	rpcToken := fs.String("rpc-token", os.Getenv("SV_RPC_TOKEN"), "daemon rpc token (default $SV_RPC_TOKEN)")
	asJSON := fs.Bool("json", false, "emit json")
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}
	status := nodeagent.New().Status(ctx, *rpcAddr, *rpcToken)
	if *asJSON {
		if err := env.printJSON(status); err != nil {
			return exitNetworkFailed
		}
	} else {
		line := fmt.Sprintf("health=%s", status.Health)
		if s := status.Service; s != nil {
			line += fmt.Sprintf(" unlocked=%v ledger=%s consumed=%d metas=%d", s.Unlocked, s.LedgerBackend, s.ConsumedNullifiers, s.RegisteredMetas)
		}
		if status.LastError != "" {
			line += " error=" + status.LastError
		}
		env.println(line)
	}
	if status.Service == nil {
		return exitNetworkFailed
	}
	return exitOK
}

func runDoctor(ctx context.Context, args []string, env *cliEnv) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	configPath := fs.String("config", "", "daemon config path")
	rpcAddr := fs.String("rpc-addr", "", "probe a running daemon at host:port")
	rpcToken := fs.String("rpc-token", os.Getenv("SV_RPC_TOKEN"), "daemon rpc token (default $SV_RPC_TOKEN)")
	checkListen := fs.Bool("check-listen", false, "verify the configured rpc address can be bound")
	asJSON := fs.Bool("json", false, "emit json")
	if err := fs.Parse(args); err != nil {
		return exitInvalidInput
	}
	// Validation failures become a doctor check instead of aborting.
	cfg, err := config.Load(*configPath)
	if err != nil && !errors.Is(err, config.ErrInvalidConfig) {
		return env.fail(err.Error(), exitInvalidInput)
	}
	report := nodeagent.New().Doctor(ctx, nodeagent.DoctorInput{
		Config:      cfg,
		RPCAddr:     *rpcAddr,
		RPCToken:    *rpcToken,
		CheckListen: *checkListen,
	})
	if *asJSON {
		if err := env.printJSON(report); err != nil {
			return exitNetworkFailed
		}
	} else {
		env.println(fmt.Sprintf("ready=%v checks=%d", report.Ready, len(report.Checks)))
		for _, c := range report.Checks {
			if c.Pass {
				env.println("[PASS] " + c.Name)
			} else {
				env.println(fmt.Sprintf("[FAIL] %s: %s", c.Name, c.Reason))
			}
		}
	}
	if report.Ready {
		return exitOK
	}
	return exitNetworkFailed
}

func (e *cliEnv) result(v any, err error) int {
	if err != nil {
		code := exitServiceFailed
		if errors.Is(err, app.ErrInvalidArgument) || errors.Is(err, app.ErrKeysLocked) {
			code = exitInvalidInput
		}
		return e.fail(err.Error(), code)
	}
	if err := e.printJSON(v); err != nil {
		return exitNetworkFailed
	}
	return exitOK
}

func (e *cliEnv) printJSON(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *cliEnv) println(line string) {
	_, _ = fmt.Fprintln(e.stdout, line)
}

func (e *cliEnv) fail(line string, exitCode int) int {
	_, _ = fmt.Fprintln(e.stderr, line)
	return exitCode
}

func (e *cliEnv) printUsage() {
	for _, line := range []string{
		"stealthctl <command> [flags]",
		"commands:",
		"  keygen           [--mnemonic]",
		"  keystore-create  --keystore <path> [--mnemonic words]   (passphrase from SV_KEYSTORE_PASSPHRASE)",
		"  derive           --spend-pub k --view-pub k [--note text] [--format a|b]",
		"  check            --address k --ephemeral k [key flags]",
		"  sign-claim       --address k --ephemeral k --destination k --position n [key flags]",
		"  nullifier        --address k --position n",
		"  decrypt          --payload text --ephemeral k [--format a|b] [key flags]",
		"  scan             [--events file|-] [key flags]",
		"  status           [--rpc-addr host:port] [--rpc-token token] [--json]",
		"  doctor           [--config path] [--rpc-addr host:port] [--check-listen] [--json]",
		"key flags: --keystore path | --spend-pub k --spend-priv k --view-priv k (privates default to $SV_SPEND_PRIV/$SV_VIEW_PRIV)",
	} {
		_, _ = fmt.Fprintln(e.stderr, line)
	}
}
