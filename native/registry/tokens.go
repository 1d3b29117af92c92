package registry

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	errNilTokenState = errors.New("token registry: state not configured")
	ErrNotAdmin      = errors.New("tokens: caller is not the admin")
	ErrUnknownToken  = errors.New("tokens: unknown token")
)

// TokenInfo describes one accepted payment token.
type TokenInfo struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Name     string `json:"name" yaml:"name"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

type tokenState interface {
	TokenGet(symbol string) (*TokenInfo, bool)
	TokenPut(*TokenInfo) error
	TokenDelete(symbol string) error
	TokenSymbols() []string
}

// TokenRegistry is the accepted-payment-token allow-list. Mutations are
// admin-gated; reads are open to every sale path.
type TokenRegistry struct {
	state tokenState
	admin [20]byte
}

// NewTokenRegistry creates a token registry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{}
}

// SetState configures the state backend.
func (r *TokenRegistry) SetState(state tokenState) { r.state = state }

// SetAdmin configures the privileged account.
func (r *TokenRegistry) SetAdmin(addr [20]byte) { r.admin = addr }

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Add puts a token on the allow-list. Admin only.
func (r *TokenRegistry) Add(caller [20]byte, info TokenInfo) error {
	if r == nil || r.state == nil {
		return errNilTokenState
	}
	if caller != r.admin || r.admin == ([20]byte{}) {
		return ErrNotAdmin
	}
	return r.install(info)
}

// Remove takes a token off the allow-list. Admin only.
func (r *TokenRegistry) Remove(caller [20]byte, symbol string) error {
	if r == nil || r.state == nil {
		return errNilTokenState
	}
	if caller != r.admin || r.admin == ([20]byte{}) {
		return ErrNotAdmin
	}
	normalized := normalizeSymbol(symbol)
	if _, ok := r.state.TokenGet(normalized); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, normalized)
	}
	return r.state.TokenDelete(normalized)
}

// IsAccepted reports whether the token may denominate listings, offers and
// auctions.
func (r *TokenRegistry) IsAccepted(symbol string) bool {
	if r == nil || r.state == nil {
		return false
	}
	_, ok := r.state.TokenGet(normalizeSymbol(symbol))
	return ok
}

// Tokens returns the allow-listed symbols in store order.
func (r *TokenRegistry) Tokens() []string {
	if r == nil || r.state == nil {
		return nil
	}
	return r.state.TokenSymbols()
}

func (r *TokenRegistry) install(info TokenInfo) error {
	info.Symbol = normalizeSymbol(info.Symbol)
	if info.Symbol == "" {
		return fmt.Errorf("tokens: empty symbol")
	}
	return r.state.TokenPut(&info)
}

type allowListFile struct {
	Tokens []TokenInfo `yaml:"tokens"`
}

// LoadAllowList installs the boot-time allow-list from a YAML file. It runs
// before the RPC surface opens, so it bypasses the admin gate.
func (r *TokenRegistry) LoadAllowList(path string) error {
	if r == nil || r.state == nil {
		return errNilTokenState
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tokens: read allow-list: %w", err)
	}
	var file allowListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("tokens: parse allow-list: %w", err)
	}
	for _, info := range file.Tokens {
		if err := r.install(info); err != nil {
			return err
		}
	}
	return nil
}
