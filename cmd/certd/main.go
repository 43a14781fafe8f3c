package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sccert.dev/node/consensus"
	"sccert.dev/node/node"
	"sccert.dev/node/node/store"
	"sccert.dev/node/sidechain"
)

type multiStringFlag []string

func (m *multiStringFlag) String() string {
	if m == nil {
		return ""
	}
	return strings.Join(*m, ",")
}

func (m *multiStringFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

// waitForSignal blocks until the process is asked to stop.
var waitForSignal = func() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("certd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		certs  multiStringFlag
		create multiStringFlag
	)
	configPath := fs.String("config", "", "YAML config file")
	network := fs.String("network", "", "network name (mainnet/testnet/regtest)")
	dataDir := fs.String("datadir", "", "node data directory")
	logLevel := fs.String("log-level", "", "log level: debug|info|warn|error")
	logFile := fs.String("log-file", "", "log to this file instead of stderr")
	mode := fs.String("mode", "", "validation mode: full|lite")
	fs.Var(&certs, "submit-cert", "hex certificate to submit to the pool (repeatable)")
	fs.Var(&create, "create-sidechain", "register sidechain <scid-hex>:<amount> at the next height (repeatable)")
	generate := fs.Int("generate", 0, "assemble and connect N blocks after startup")
	dryRun := fs.Bool("dry-run", false, "print effective config and chain tip, then exit")
	oneshot := fs.Bool("oneshot", false, "exit after startup work instead of waiting for a signal")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := node.DefaultConfig()
	if *configPath != "" {
		loaded, err := node.LoadConfig(*configPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "config load failed: %v\n", err)
			return 2
		}
		cfg = loaded
	}
	networkChanged := *network != "" && *network != cfg.Network
	overrideString(&cfg.Network, *network)
	overrideString(&cfg.DataDir, *dataDir)
	overrideString(&cfg.LogLevel, *logLevel)
	overrideString(&cfg.LogFile, *logFile)
	overrideString(&cfg.Mode, *mode)
	if networkChanged && *configPath == "" {
		cfg.CoinsMaturity = node.DefaultCoinsMaturity(cfg.Network)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := node.ValidateConfig(cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}

	logger, err := node.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()
	consensus.SetLogger(logger.Named("cert"))
	defer consensus.SetLogger(nil)

	db, err := store.Open(cfg.DataDir, cfg.Network)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "store open failed: %v\n", err)
		return 2
	}
	defer func() { _ = db.Close() }()

	var registry *sidechain.Manager
	if cfg.Mode == node.ModeFull {
		registry, err = sidechain.NewManager(db, cfg.CoinsMaturity, logger.Named("sidechain"))
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "sidechain registry load failed: %v\n", err)
			return 2
		}
	}
	rules := node.NewRules(cfg.Mode, registry, node.NewStandardPolicy(consensus.Amount(cfg.MinRelayFeePerKB)))
	hub := node.NewWalletHub()
	chain, err := node.NewChainState(db, cfg.Network, registry, rules, node.NewWalletNotifier(cfg.Mode, hub), logger.Named("chain"))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "chainstate load failed: %v\n", err)
		return 2
	}
	pool := node.NewCertPool(rules, cfg.RequireStandard, logger.Named("certpool"))
	scores := node.NewPeerScores(cfg.BanThreshold, logger.Named("peers"))

	if err := printConfig(stdout, cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "config encode failed: %v\n", err)
		return 1
	}
	tip, height := chain.Tip()
	_, _ = fmt.Fprintf(stdout, "chainstate: height=%d tip=%s mode=%s\n", height, tip, cfg.Mode)
	if *dryRun {
		return 0
	}

	for _, arg := range create {
		if code := createSidechain(registry, arg, height+1, stdout, stderr); code != 0 {
			return code
		}
	}
	for _, h := range certs {
		submitCertificate(pool, scores, h, height+1, stdout, stderr)
	}

	if *generate > 0 {
		miner, err := node.NewBlockAssembler(chain, pool, node.MinerConfig{MaxCertsPerBlock: cfg.MaxCertsPerBlock}, logger.Named("miner"))
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "miner init failed: %v\n", err)
			return 2
		}
		for i := 0; i < *generate; i++ {
			s, err := miner.GenerateBlock(context.Background())
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "generate failed: %v\n", err)
				return 2
			}
			_, _ = fmt.Fprintf(stdout, "connected: height=%d hash=%s txs=%d certs=%d cert_fees=%s\n",
				s.BlockHeight, s.BlockHash, s.Txs, s.Certs, consensus.FormatMoney(s.CertFees))
		}
	}
	if *oneshot {
		return 0
	}

	logger.Info("certd running", zap.String("network", cfg.Network), zap.String("mode", cfg.Mode))
	waitForSignal()
	logger.Info("certd stopped")
	return 0
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func createSidechain(registry *sidechain.Manager, arg string, height int, stdout, stderr io.Writer) int {
	if registry == nil {
		_, _ = fmt.Fprintln(stderr, "create-sidechain requires full mode")
		return 2
	}
	idHex, amountStr, ok := strings.Cut(arg, ":")
	if !ok {
		_, _ = fmt.Fprintf(stderr, "bad -create-sidechain value %q, want <scid>:<amount>\n", arg)
		return 2
	}
	scID, err := consensus.HashFromString(idHex)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "bad sidechain id: %v\n", err)
		return 2
	}
	amount, err := consensus.ParseMoney(amountStr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "bad sidechain amount: %v\n", err)
		return 2
	}
	if err := registry.CreateSidechain(scID, consensus.Hash{}, consensus.Hash{}, height, amount); err != nil {
		_, _ = fmt.Fprintf(stderr, "create sidechain failed: %v\n", err)
		return 2
	}
	if err := registry.Flush(); err != nil {
		_, _ = fmt.Fprintf(stderr, "sidechain flush failed: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "sidechain: id=%s amount=%s matures_at=%d\n", scID, consensus.FormatMoney(amount), height+registry.CoinsMaturity())
	return 0
}

func submitCertificate(pool *node.CertPool, scores *node.PeerScores, certHex string, height int, stdout, stderr io.Writer) {
	cert, err := consensus.DecodeCertificateHex(certHex)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "certificate decode failed: %v\n", err)
		return
	}
	state, err := pool.Accept(cert, height)
	if err != nil {
		banned := scores.Misbehaving("local", state, time.Now())
		_, _ = fmt.Fprintf(stdout, "rejected: cert=%s reason=%s dos=%d banned=%v\n", cert.Hash(), state.RejectReason(), state.DoSScore(), banned)
		return
	}
	_, _ = fmt.Fprintf(stdout, "accepted: cert=%s\n", cert.Hash())
}

func printConfig(w io.Writer, cfg node.Config) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
