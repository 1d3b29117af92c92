package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"agora/crypto"
)

func testAddress(b byte) string {
	raw := make([]byte, 20)
	raw[0] = b
	return crypto.MustNewAddress(crypto.AgoPrefix, raw).String()
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8545" || cfg.Env != "dev" || cfg.WrappedSymbol != "WAGO" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.PlatformFeeBps != 20 || cfg.SnipeWindowSecs != 600 || cfg.RPCRateLimit != 50 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}

	// A second load reads the persisted file back.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.PlatformFeeBps != 20 || again.AdminJWTSecretEnv != "AGORA_ADMIN_SECRET" {
		t.Fatalf("reloaded = %+v", again)
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	admin := testAddress(0x01)
	fee := testAddress(0x02)
	raw := `RPCAddress = ":9090"
DataDir = "/tmp/agora"
AdminAddress = "` + admin + `"
FeeRecipient = "` + fee + `"
PlatformFeeBps = 250
MinBidIncrement = "1000000000000000"
SnipeWindowSecs = 120
RPCRateLimit = 10
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":9090" || cfg.PlatformFeeBps != 250 || cfg.SnipeWindowSecs != 120 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Env != "dev" || cfg.WrappedSymbol != "WAGO" {
		t.Fatalf("unset fields not defaulted: %+v", cfg)
	}
	adminBytes, err := cfg.AdminAddressBytes()
	if err != nil || adminBytes[0] != 0x01 {
		t.Fatalf("admin bytes = (%x, %v)", adminBytes, err)
	}
	want, _ := new(big.Int).SetString("1000000000000000", 10)
	if cfg.MinBidIncrementInt().Cmp(want) != 0 {
		t.Fatalf("min bid increment = %s", cfg.MinBidIncrementInt())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.applyDefaults()
		return cfg
	}

	cfg := base()
	cfg.PlatformFeeBps = 10_001
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected fee bps rejection")
	}

	cfg = base()
	cfg.MinBidIncrement = "ten"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected increment rejection")
	}

	cfg = base()
	cfg.SnipeWindowSecs = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected snipe window rejection")
	}

	cfg = base()
	cfg.AdminAddress = "ago1notbech32"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected admin address rejection")
	}

	cfg = base()
	cfg.FeeRecipient = "0x1234"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected fee recipient rejection")
	}
}

func TestAddressBytesZeroWhenUnset(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	addr, err := cfg.FeeRecipientBytes()
	if err != nil || addr != ([20]byte{}) {
		t.Fatalf("fee recipient = (%x, %v), want zero", addr, err)
	}
}
