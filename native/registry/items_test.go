package registry

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
)

type memState struct {
	items       map[string]*ItemRecord
	collections map[[20]byte]*CollectionRecord
	approvals   map[[40]byte]bool
	tokens      map[string]*TokenInfo
	prices      map[string]*big.Int
}

func newMemState() *memState {
	return &memState{
		items:       make(map[string]*ItemRecord),
		collections: make(map[[20]byte]*CollectionRecord),
		approvals:   make(map[[40]byte]bool),
		tokens:      make(map[string]*TokenInfo),
		prices:      make(map[string]*big.Int),
	}
}

func itemMapKey(collection [20]byte, item uint64) string {
	return fmt.Sprintf("%x/%d", collection, item)
}

func (m *memState) ItemGet(collection [20]byte, item uint64) (*ItemRecord, bool) {
	record, ok := m.items[itemMapKey(collection, item)]
	if !ok {
		return nil, false
	}
	clone := *record
	clone.Balances = make(map[string]uint64, len(record.Balances))
	for k, v := range record.Balances {
		clone.Balances[k] = v
	}
	return &clone, true
}

func (m *memState) ItemPut(record *ItemRecord) error {
	m.items[itemMapKey(record.Collection, record.ID)] = record
	return nil
}

func (m *memState) CollectionGet(collection [20]byte) (*CollectionRecord, bool) {
	record, ok := m.collections[collection]
	return record, ok
}

func (m *memState) CollectionPut(record *CollectionRecord) error {
	m.collections[record.Address] = record
	return nil
}

func approvalMapKey(owner, operator [20]byte) [40]byte {
	var key [40]byte
	copy(key[:20], owner[:])
	copy(key[20:], operator[:])
	return key
}

func (m *memState) ApprovalGet(owner, operator [20]byte) bool {
	return m.approvals[approvalMapKey(owner, operator)]
}

func (m *memState) ApprovalPut(owner, operator [20]byte, approved bool) error {
	if !approved {
		delete(m.approvals, approvalMapKey(owner, operator))
		return nil
	}
	m.approvals[approvalMapKey(owner, operator)] = true
	return nil
}

func (m *memState) TokenGet(symbol string) (*TokenInfo, bool) {
	info, ok := m.tokens[symbol]
	return info, ok
}

func (m *memState) TokenPut(info *TokenInfo) error {
	m.tokens[info.Symbol] = info
	return nil
}

func (m *memState) TokenDelete(symbol string) error {
	delete(m.tokens, symbol)
	return nil
}

func (m *memState) TokenSymbols() []string {
	out := make([]string, 0, len(m.tokens))
	for symbol := range m.tokens {
		out = append(out, symbol)
	}
	return out
}

func (m *memState) PriceGet(symbol string) (*big.Int, bool) {
	price, ok := m.prices[symbol]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(price), true
}

func (m *memState) PricePut(symbol string, price *big.Int) error {
	m.prices[symbol] = new(big.Int).Set(price)
	return nil
}

var (
	alice      = [20]byte{0x01}
	bob        = [20]byte{0x02}
	operator   = [20]byte{0x03}
	collection = [20]byte{0xc0}
)

func newTestLedger() (*Ledger, *memState) {
	state := newMemState()
	ledger := NewLedger()
	ledger.SetState(state)
	return ledger, state
}

func TestMintAndBalances(t *testing.T) {
	ledger, _ := newTestLedger()
	if err := ledger.Mint(collection, 1, alice, 3); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Mint(collection, 1, alice, 1); err == nil {
		t.Fatalf("expected duplicate mint rejection")
	}
	balance, err := ledger.BalanceOf(alice, collection, 1)
	if err != nil || balance != 3 {
		t.Fatalf("balance = %d (%v), want 3", balance, err)
	}
	owner, ok, err := ledger.OwnerOf(collection, 1)
	if err != nil || !ok || owner != alice {
		t.Fatalf("owner = (%x, %v, %v), want alice", owner, ok, err)
	}
}

func TestMintMarksUnknownCollectionInternal(t *testing.T) {
	ledger, _ := newTestLedger()
	if err := ledger.Mint(collection, 1, alice, 1); err != nil {
		t.Fatalf("mint: %v", err)
	}
	internal, err := ledger.CollectionInternal(collection)
	if err != nil || !internal {
		t.Fatalf("internal = %v (%v), want true", internal, err)
	}
}

func TestRegisterCollectionKeepsOriginalFlag(t *testing.T) {
	ledger, _ := newTestLedger()
	if err := ledger.RegisterCollection(collection, false); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := ledger.RegisterCollection(collection, true); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	internal, err := ledger.CollectionInternal(collection)
	if err != nil || internal {
		t.Fatalf("internal = %v (%v), want false preserved", internal, err)
	}
}

func TestTransferSplitsOwnership(t *testing.T) {
	ledger, _ := newTestLedger()
	if err := ledger.Mint(collection, 1, alice, 3); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(collection, 1, alice, bob, 1); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, ok, _ := ledger.OwnerOf(collection, 1); ok {
		t.Fatalf("split supply still reports a sole owner")
	}
	if err := ledger.Transfer(collection, 1, alice, bob, 2); err != nil {
		t.Fatalf("transfer rest: %v", err)
	}
	owner, ok, _ := ledger.OwnerOf(collection, 1)
	if !ok || owner != bob {
		t.Fatalf("owner = (%x, %v), want bob", owner, ok)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	ledger, _ := newTestLedger()
	if err := ledger.Mint(collection, 1, alice, 1); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(collection, 1, alice, bob, 2); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if err := ledger.Transfer(collection, 2, alice, bob, 1); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
}

func TestApprovalForAll(t *testing.T) {
	ledger, _ := newTestLedger()
	if ledger.IsApprovedForAll(alice, operator) {
		t.Fatalf("unexpected default approval")
	}
	if err := ledger.SetApprovalForAll(alice, operator, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !ledger.IsApprovedForAll(alice, operator) {
		t.Fatalf("approval not recorded")
	}
	if err := ledger.SetApprovalForAll(alice, operator, false); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ledger.IsApprovedForAll(alice, operator) {
		t.Fatalf("approval survived revoke")
	}
}
