package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	"refledger/config"
	"refledger/core/events"
	"refledger/core/types"
	"refledger/crypto"
	"refledger/native/referral"
	"refledger/observability/logging"
	"refledger/storage"
)

const (
	defaultConfig = "./config.toml"
	serviceName   = "refctl"
)

type command struct {
	name string
	help string
	run  func(args []string, out io.Writer) error
}

var commands = []command{
	{"init-config", "Write a default configuration file", runInitConfig},
	{"keygen", "Generate a fresh account address", runKeygen},
	{"register", "Bind a referee to its referrer", runRegister},
	{"distribute", "Split a reward between a referee and its referrers", runDistribute},
	{"referrer-of", "Print the referrer of a referee", runReferrerOf},
	{"is-active", "Report whether a referrer is active", runIsActive},
	{"account", "Print the stored referral record of an address", runAccount},
	{"serve", "Apply a feed of ledger operations while exposing prometheus metrics", runServe},
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stdout)
		os.Exit(1)
	}
	if err := dispatch(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(name string, args []string, out io.Writer) error {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd.run(args, out)
		}
	}
	usage(out)
	return fmt.Errorf("unknown command %q", name)
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "refctl <command> [flags]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(out, "  %-14s %s\n", cmd.name, cmd.help)
	}
}

// ledger bundles an engine with the resources backing it.
type ledger struct {
	cfg    *config.Config
	engine *referral.Engine
	close  func()
}

func openLedger(configPath string, out io.Writer) (*ledger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, logCloser := logging.SetupWithFile(serviceName, cfg.Environment, logging.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  64,
		MaxBackups: 5,
		MaxAgeDays: 30,
	})
	rc, err := cfg.ReferralConfig()
	if err != nil {
		logCloser.Close()
		return nil, err
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("open data dir %s: %w", cfg.DataDir, err)
	}
	engine, err := referral.NewEngine(rc, referral.NewStore(db))
	if err != nil {
		db.Close()
		logCloser.Close()
		return nil, err
	}
	engine.SetLogger(logger)
	engine.SetPauses(cfg.PauseView())
	engine.SetEmitter(&jsonEmitter{out: out, logger: logger})
	return &ledger{
		cfg:    cfg,
		engine: engine,
		close: func() {
			db.Close()
			logCloser.Close()
		},
	}, nil
}

// jsonEmitter prints every event in its flattened indexer form.
type jsonEmitter struct {
	out    io.Writer
	logger *slog.Logger
}

type flattenable interface {
	Event() *types.Event
}

func (e *jsonEmitter) Emit(evt events.Event) {
	flat, ok := evt.(flattenable)
	if !ok {
		e.logger.Warn("event without flat form", "type", evt.EventType())
		return
	}
	if err := json.NewEncoder(e.out).Encode(flat.Event()); err != nil {
		e.logger.Warn("write event", "type", evt.EventType(), "error", err)
	}
}

func parseAddress(flagName, value string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return [20]byte{}, fmt.Errorf("-%s: %w", flagName, err)
	}
	return addr.Array(), nil
}

func parseAmount(flagName, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("-%s: invalid integer %q", flagName, value)
	}
	return amount, nil
}

func parseNow(unix int64) time.Time {
	if unix <= 0 {
		return time.Now()
	}
	return time.Unix(unix, 0).UTC()
}

func formatAddress(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.RefPrefix, addr[:]).String()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runInitConfig(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init-config", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path of the config file to write")
	force := fs.Bool("force", false, "Overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*force {
		if _, err := os.Stat(*configPath); err == nil {
			return fmt.Errorf("config file %s already exists (use -force to overwrite)", *configPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := config.Persist(*configPath, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote default config to %s\n", *configPath)
	return nil
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	addr := key.PubKey().Address()
	fmt.Fprintf(out, "%s %s\n", addr.String(), addr.Hex())
	return nil
}

func runRegister(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the config file")
	refereeFlag := fs.String("referee", "", "Address registering a referrer")
	referrerFlag := fs.String("referrer", "", "Address of the referrer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	referee, err := parseAddress("referee", *refereeFlag)
	if err != nil {
		return err
	}
	referrer, err := parseAddress("referrer", *referrerFlag)
	if err != nil {
		return err
	}
	l, err := openLedger(*configPath, out)
	if err != nil {
		return err
	}
	defer l.close()
	_, err = l.engine.Register(referee, referrer)
	return err
}

type payoutView struct {
	Recipient string `json:"recipient"`
	Level     int    `json:"level"`
	Amount    string `json:"amount"`
}

type planView struct {
	Referee          string       `json:"referee"`
	RewardBase       string       `json:"rewardBase"`
	RefereeBonusRate uint64       `json:"refereeBonusRate"`
	Pool             string       `json:"pool"`
	Payouts          []payoutView `json:"payouts"`
	Forfeited        []payoutView `json:"forfeited,omitempty"`
	Residual         string       `json:"residual"`
}

func newPlanView(plan *referral.PayoutPlan) planView {
	view := planView{
		Referee:          formatAddress(plan.Referee),
		RewardBase:       plan.RewardBase.String(),
		RefereeBonusRate: uint64(plan.RefereeBonusRate),
		Pool:             plan.Pool.String(),
		Payouts:          make([]payoutView, 0, len(plan.Payouts)),
		Residual:         plan.Residual.String(),
	}
	for _, p := range plan.Payouts {
		view.Payouts = append(view.Payouts, payoutView{Recipient: formatAddress(p.Recipient), Level: p.Level, Amount: p.Amount.String()})
	}
	for _, f := range plan.Forfeited {
		view.Forfeited = append(view.Forfeited, payoutView{Recipient: formatAddress(f.Referrer), Level: f.Level, Amount: f.Amount.String()})
	}
	return view
}

func runDistribute(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("distribute", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the config file")
	refereeFlag := fs.String("referee", "", "Address whose activity generated the reward")
	amountFlag := fs.String("amount", "", "Reward base in the smallest unit")
	nowFlag := fs.Int64("now", 0, "Unix timestamp of the reward event (defaults to the current time)")
	dryRun := fs.Bool("dry-run", false, "Compute the plan without recording it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	referee, err := parseAddress("referee", *refereeFlag)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", *amountFlag)
	if err != nil {
		return err
	}
	l, err := openLedger(*configPath, out)
	if err != nil {
		return err
	}
	defer l.close()

	var plan *referral.PayoutPlan
	if *dryRun {
		plan, err = l.engine.Preview(referee, amount, parseNow(*nowFlag))
	} else {
		plan, err = l.engine.Distribute(referee, amount, parseNow(*nowFlag))
	}
	if err != nil {
		return err
	}
	return writeJSON(out, newPlanView(plan))
}

func runReferrerOf(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("referrer-of", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the config file")
	refereeFlag := fs.String("referee", "", "Address to look up")
	if err := fs.Parse(args); err != nil {
		return err
	}
	referee, err := parseAddress("referee", *refereeFlag)
	if err != nil {
		return err
	}
	l, err := openLedger(*configPath, out)
	if err != nil {
		return err
	}
	defer l.close()
	referrer, ok, err := l.engine.ReferrerOf(referee)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "none")
		return nil
	}
	fmt.Fprintln(out, formatAddress(referrer))
	return nil
}

func runIsActive(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("is-active", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the config file")
	referrerFlag := fs.String("referrer", "", "Address to check")
	nowFlag := fs.Int64("now", 0, "Unix timestamp to evaluate at (defaults to the current time)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	referrer, err := parseAddress("referrer", *referrerFlag)
	if err != nil {
		return err
	}
	l, err := openLedger(*configPath, out)
	if err != nil {
		return err
	}
	defer l.close()
	active, err := l.engine.IsActive(referrer, parseNow(*nowFlag))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, active)
	return nil
}

type accountView struct {
	Address           string `json:"address"`
	Referrer          string `json:"referrer,omitempty"`
	ReferredCount     uint64 `json:"referredCount"`
	LastActive        string `json:"lastActive,omitempty"`
	InactivitySeconds uint64 `json:"inactivitySeconds"`
	TotalReward       string `json:"totalReward"`
}

func loadAccountView(engine *referral.Engine, addr [20]byte) (accountView, error) {
	account, err := engine.Account(addr)
	if err != nil {
		return accountView{}, err
	}
	view := accountView{
		Address:           formatAddress(addr),
		ReferredCount:     account.ReferredCount,
		InactivitySeconds: engine.Config().SecondsUntilInactive(),
		TotalReward:       account.TotalReward.String(),
	}
	if account.HasReferrer {
		view.Referrer = formatAddress(account.Referrer)
	}
	if account.HasActivity {
		view.LastActive = time.Unix(int64(account.LastActive), 0).UTC().Format(time.RFC3339)
	}
	return view, nil
}

func runAccount(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("account", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the config file")
	addrFlag := fs.String("addr", "", "Address to inspect")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := parseAddress("addr", *addrFlag)
	if err != nil {
		return err
	}
	l, err := openLedger(*configPath, out)
	if err != nil {
		return err
	}
	defer l.close()
	view, err := loadAccountView(l.engine, addr)
	if err != nil {
		return err
	}
	return writeJSON(out, view)
}
