package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"agora/crypto"
)

// Config is the marketplace node configuration, loaded from a TOML file.
type Config struct {
	RPCAddress        string `toml:"RPCAddress"`
	DataDir           string `toml:"DataDir"`
	Env               string `toml:"Env"`
	LogFile           string `toml:"LogFile"`
	AdminAddress      string `toml:"AdminAddress"`
	FeeRecipient      string `toml:"FeeRecipient"`
	PlatformFeeBps    uint32 `toml:"PlatformFeeBps"`
	WrappedSymbol     string `toml:"WrappedSymbol"`
	MinBidIncrement   string `toml:"MinBidIncrement"`
	SnipeWindowSecs   int64  `toml:"SnipeWindowSecs"`
	TokenListFile     string `toml:"TokenListFile"`
	AdminJWTSecretEnv string `toml:"AdminJWTSecretEnv"`
	RPCRateLimit      int    `toml:"RPCRateLimit"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8545"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./agora-data"
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "dev"
	}
	if strings.TrimSpace(c.WrappedSymbol) == "" {
		c.WrappedSymbol = "WAGO"
	}
	if strings.TrimSpace(c.MinBidIncrement) == "" {
		c.MinBidIncrement = "1"
	}
	if c.SnipeWindowSecs == 0 {
		c.SnipeWindowSecs = 600
	}
	if strings.TrimSpace(c.AdminJWTSecretEnv) == "" {
		c.AdminJWTSecretEnv = "AGORA_ADMIN_SECRET"
	}
	if c.RPCRateLimit <= 0 {
		c.RPCRateLimit = 50
	}
}

// Validate checks address encodings and numeric bounds.
func (c *Config) Validate() error {
	if c.PlatformFeeBps > 10_000 {
		return fmt.Errorf("config: PlatformFeeBps %d exceeds 10000", c.PlatformFeeBps)
	}
	if c.SnipeWindowSecs < 0 {
		return fmt.Errorf("config: SnipeWindowSecs must be non-negative")
	}
	if _, ok := new(big.Int).SetString(c.MinBidIncrement, 10); !ok {
		return fmt.Errorf("config: MinBidIncrement %q is not a decimal integer", c.MinBidIncrement)
	}
	if strings.TrimSpace(c.AdminAddress) != "" {
		if _, err := crypto.DecodeAddress(c.AdminAddress); err != nil {
			return fmt.Errorf("config: AdminAddress: %w", err)
		}
	}
	if strings.TrimSpace(c.FeeRecipient) != "" {
		if _, err := crypto.DecodeAddress(c.FeeRecipient); err != nil {
			return fmt.Errorf("config: FeeRecipient: %w", err)
		}
	}
	return nil
}

// AdminAddressBytes decodes AdminAddress, returning the zero address when
// unset.
func (c *Config) AdminAddressBytes() ([20]byte, error) {
	return c.addressBytes(c.AdminAddress)
}

// FeeRecipientBytes decodes FeeRecipient, returning the zero address when
// unset.
func (c *Config) FeeRecipientBytes() ([20]byte, error) {
	return c.addressBytes(c.FeeRecipient)
}

func (c *Config) addressBytes(encoded string) ([20]byte, error) {
	var out [20]byte
	if strings.TrimSpace(encoded) == "" {
		return out, nil
	}
	addr, err := crypto.DecodeAddress(encoded)
	if err != nil {
		return out, err
	}
	return addr.Array(), nil
}

// MinBidIncrementInt parses MinBidIncrement. Validate must have passed.
func (c *Config) MinBidIncrementInt() *big.Int {
	v, ok := new(big.Int).SetString(c.MinBidIncrement, 10)
	if !ok {
		return big.NewInt(1)
	}
	return v
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.PlatformFeeBps = 20

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
