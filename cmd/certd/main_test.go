package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sccert.dev/node/consensus"
)

func TestMultiStringFlagSetAppends(t *testing.T) {
	var m multiStringFlag
	if err := m.Set("a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Set("b"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := m.String(); got != "a,b" {
		t.Fatalf("string=%q, want %q", got, "a,b")
	}
}

func TestRunDryRunOK(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	code := run([]string{"--dry-run", "--datadir", dir, "--log-level", "ERROR"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr=%q)", code, errOut.String())
	}
	if !strings.Contains(out.String(), "chainstate: height=-1") {
		t.Fatalf("unexpected stdout: %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "chains", "regtest", "db", "kv.db")); err != nil {
		t.Fatalf("expected store to be created: %v", err)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"--dry-run", "--datadir", t.TempDir(), "--mode", "spv"}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	if !strings.Contains(errOut.String(), "invalid config") {
		t.Fatalf("unexpected stderr: %q", errOut.String())
	}
	if code := run([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit code 2 for missing config, got %d", code)
	}
	if code := run([]string{"--bogus"}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit code 2 for unknown flag, got %d", code)
	}
}

func TestRunConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "certd.yaml")
	body := "network: testnet\ndataDir: " + filepath.Join(dir, "data") + "\nlogLevel: error\nmode: lite\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out, errOut bytes.Buffer
	if code := run([]string{"--config", path, "--dry-run"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), `"network": "testnet"`) || !strings.Contains(out.String(), "mode=lite") {
		t.Fatalf("config not applied: %q", out.String())
	}
}

func TestRunSidechainCertificateFlow(t *testing.T) {
	dir := t.TempDir()
	var sc consensus.Hash
	sc[0] = 0x5c

	var out, errOut bytes.Buffer
	code := run([]string{
		"--datadir", dir, "--log-level", "error", "--oneshot",
		"--create-sidechain", sc.String() + ":0.00001",
		"--generate", "3",
	}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "matures_at=2") || !strings.Contains(out.String(), "connected: height=2") {
		t.Fatalf("unexpected stdout: %q", out.String())
	}

	b := consensus.NewCertificateBuilder(sc)
	b.TotalAmount = 100
	b.AddOutput(90, consensus.P2PKHReplayScript([20]byte{1}, consensus.Hash{2}, 0))
	good := b.Seal().EncodeHex()
	empty := consensus.NewCertificateBuilder(sc).Seal().EncodeHex()

	out.Reset()
	errOut.Reset()
	code = run([]string{
		"--datadir", dir, "--log-level", "error", "--oneshot",
		"--submit-cert", good,
		"--submit-cert", empty,
		"--submit-cert", "zz",
		"--generate", "1",
	}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	got := out.String()
	if !strings.Contains(got, "accepted: cert=") {
		t.Fatalf("certificate not accepted: %q", got)
	}
	if !strings.Contains(got, "reason="+consensus.REASON_CERT_VOUT_EMPTY+" dos=10 banned=false") {
		t.Fatalf("empty certificate not rejected: %q", got)
	}
	if !strings.Contains(errOut.String(), "certificate decode failed") {
		t.Fatalf("bad hex not reported: %q", errOut.String())
	}
	if !strings.Contains(got, "connected: height=3") || !strings.Contains(got, "certs=1 cert_fees=0.0000001") {
		t.Fatalf("certificate not mined: %q", got)
	}
}

func TestRunWaitsForSignal(t *testing.T) {
	prev := waitForSignal
	called := false
	waitForSignal = func() { called = true }
	t.Cleanup(func() { waitForSignal = prev })

	var out, errOut bytes.Buffer
	if code := run([]string{"--datadir", t.TempDir(), "--log-level", "error"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	if !called {
		t.Fatalf("expected run to wait for a signal")
	}
}
