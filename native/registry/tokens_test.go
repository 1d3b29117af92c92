package registry

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

var admin = [20]byte{0xad}

func newTestTokens() (*TokenRegistry, *memState) {
	state := newMemState()
	tokens := NewTokenRegistry()
	tokens.SetState(state)
	tokens.SetAdmin(admin)
	return tokens, state
}

func TestTokenAddIsAdminGated(t *testing.T) {
	tokens, _ := newTestTokens()
	info := TokenInfo{Symbol: "usda", Name: "Agora Dollar", Decimals: 18}
	if err := tokens.Add(alice, info); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("err = %v, want ErrNotAdmin", err)
	}
	if err := tokens.Add(admin, info); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !tokens.IsAccepted("USDA") || !tokens.IsAccepted(" usda ") {
		t.Fatalf("symbol not normalized on lookup")
	}
	if tokens.IsAccepted("WAGO") {
		t.Fatalf("unlisted token accepted")
	}
}

func TestTokenRemove(t *testing.T) {
	tokens, _ := newTestTokens()
	if err := tokens.Add(admin, TokenInfo{Symbol: "USDA", Decimals: 18}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := tokens.Remove(alice, "USDA"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("err = %v, want ErrNotAdmin", err)
	}
	if err := tokens.Remove(admin, "WAGO"); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("err = %v, want ErrUnknownToken", err)
	}
	if err := tokens.Remove(admin, "usda"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if tokens.IsAccepted("USDA") {
		t.Fatalf("token survived removal")
	}
}

func TestTokenAddRejectsEmptySymbol(t *testing.T) {
	tokens, _ := newTestTokens()
	if err := tokens.Add(admin, TokenInfo{Symbol: "  "}); err == nil {
		t.Fatalf("expected empty symbol rejection")
	}
}

func TestLoadAllowList(t *testing.T) {
	tokens, _ := newTestTokens()
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	raw := "tokens:\n  - symbol: wago\n    name: Wrapped Agora\n    decimals: 18\n  - symbol: USDA\n    name: Agora Dollar\n    decimals: 18\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write allow-list: %v", err)
	}
	if err := tokens.LoadAllowList(path); err != nil {
		t.Fatalf("load allow-list: %v", err)
	}
	got := tokens.Tokens()
	sort.Strings(got)
	want := []string{"USDA", "WAGO"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
}

func TestLoadAllowListMissingFile(t *testing.T) {
	tokens, _ := newTestTokens()
	if err := tokens.LoadAllowList(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}
