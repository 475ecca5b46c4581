package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"refledger/config"
	"refledger/crypto"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.MetricsAddress = "127.0.0.1:0"
	path := filepath.Join(dir, "config.toml")
	if err := config.Persist(path, cfg); err != nil {
		t.Fatalf("persist config: %v", err)
	}
	return path
}

func testAddress(b byte) string {
	raw := make([]byte, crypto.AddressLength)
	raw[crypto.AddressLength-1] = b
	return crypto.MustNewAddress(crypto.RefPrefix, raw).String()
}

func runCommand(t *testing.T, name string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := dispatch(name, args, &out); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return out.String()
}

func TestRegisterAndDistribute(t *testing.T) {
	path := writeTestConfig(t)
	referee, parent, grandparent := testAddress(1), testAddress(2), testAddress(3)

	runCommand(t, "register", "-config", path, "-referee", parent, "-referrer", grandparent)
	output := runCommand(t, "register", "-config", path, "-referee", referee, "-referrer", parent)
	if !strings.Contains(output, `"referral.referrer.registered"`) {
		t.Fatalf("expected registration event in output, got %q", output)
	}

	if got := strings.TrimSpace(runCommand(t, "referrer-of", "-config", path, "-referee", referee)); got != parent {
		t.Fatalf("expected referrer %s, got %s", parent, got)
	}
	if got := strings.TrimSpace(runCommand(t, "referrer-of", "-config", path, "-referee", grandparent)); got != "none" {
		t.Fatalf("expected no referrer for root, got %s", got)
	}

	output = runCommand(t, "distribute", "-config", path, "-referee", referee, "-amount", "1000000", "-dry-run")
	var preview planView
	if err := json.Unmarshal([]byte(output), &preview); err != nil {
		t.Fatalf("decode preview: %v (%q)", err, output)
	}
	if preview.Pool != "50000" || preview.Residual != "950000" || len(preview.Payouts) != 2 {
		t.Fatalf("unexpected preview %+v", preview)
	}
	account := runCommand(t, "account", "-config", path, "-addr", parent)
	if !strings.Contains(account, `"totalReward": "0"`) {
		t.Fatalf("dry run must not credit rewards, got %q", account)
	}

	output = runCommand(t, "distribute", "-config", path, "-referee", referee, "-amount", "1000000")
	idx := strings.Index(output, "{\n")
	if idx < 0 {
		t.Fatalf("expected plan in output, got %q", output)
	}
	if !strings.Contains(output[:idx], `"referral.reward.distributed"`) {
		t.Fatalf("expected distribution event before the plan, got %q", output)
	}
	var plan planView
	if err := json.Unmarshal([]byte(output[idx:]), &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if plan.Payouts[0].Recipient != parent || plan.Payouts[0].Amount != "40000" {
		t.Fatalf("unexpected first payout %+v", plan.Payouts[0])
	}
	if plan.Payouts[1].Recipient != grandparent || plan.Payouts[1].Amount != "10000" {
		t.Fatalf("unexpected second payout %+v", plan.Payouts[1])
	}

	account = runCommand(t, "account", "-config", path, "-addr", parent)
	if !strings.Contains(account, `"totalReward": "40000"`) || !strings.Contains(account, `"referredCount": 1`) {
		t.Fatalf("unexpected account view %q", account)
	}
	if got := strings.TrimSpace(runCommand(t, "is-active", "-config", path, "-referrer", parent)); got != "true" {
		t.Fatalf("expected rewarded referrer to be active, got %s", got)
	}
}

func TestRegisterRejectsSecondReferrer(t *testing.T) {
	path := writeTestConfig(t)
	runCommand(t, "register", "-config", path, "-referee", testAddress(1), "-referrer", testAddress(2))

	var out bytes.Buffer
	err := dispatch("register", []string{"-config", path, "-referee", testAddress(1), "-referrer", testAddress(3)}, &out)
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("expected double registration error, got %v", err)
	}
}

func TestRegisterAcceptsHexAddresses(t *testing.T) {
	path := writeTestConfig(t)
	referee := "0x" + strings.Repeat("0", 38) + "0a"
	referrer := "0x" + strings.Repeat("0", 38) + "0b"
	runCommand(t, "register", "-config", path, "-referee", referee, "-referrer", referrer)
	if got := strings.TrimSpace(runCommand(t, "referrer-of", "-config", path, "-referee", referee)); got != testAddress(0x0b) {
		t.Fatalf("unexpected referrer %s", got)
	}
}

func TestDistributeRejectsBadAmount(t *testing.T) {
	path := writeTestConfig(t)
	var out bytes.Buffer
	err := dispatch("distribute", []string{"-config", path, "-referee", testAddress(1), "-amount", "ten"}, &out)
	if err == nil || !strings.Contains(err.Error(), "-amount") {
		t.Fatalf("expected amount error, got %v", err)
	}
}

func TestInitConfigRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	runCommand(t, "init-config", "-config", path)
	var out bytes.Buffer
	if err := dispatch("init-config", []string{"-config", path}, &out); err == nil {
		t.Fatalf("expected existing config to be preserved")
	}
	runCommand(t, "init-config", "-config", path, "-force")
	if _, err := config.Load(path); err != nil {
		t.Fatalf("load written config: %v", err)
	}
}

func TestKeygenPrintsBech32AndHex(t *testing.T) {
	fields := strings.Fields(runCommand(t, "keygen"))
	if len(fields) != 2 || !strings.HasPrefix(fields[0], "ref1") || !strings.HasPrefix(fields[1], "0x") {
		t.Fatalf("unexpected keygen output %v", fields)
	}
	a, err := crypto.ParseAddress(fields[0])
	if err != nil {
		t.Fatalf("parse bech32: %v", err)
	}
	b, err := crypto.ParseAddress(fields[1])
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	if a.Array() != b.Array() {
		t.Fatalf("bech32 and hex forms disagree")
	}
}

func TestUnknownCommandPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	if err := dispatch("bogus", nil, &out); err == nil {
		t.Fatalf("expected unknown command error")
	}
	if !strings.Contains(out.String(), "serve ") {
		t.Fatalf("expected usage listing, got %q", out.String())
	}
}
