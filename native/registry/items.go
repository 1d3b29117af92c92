package registry

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	errNilItemState        = errors.New("item ledger: state not configured")
	ErrItemNotFound        = errors.New("items: item not found")
	ErrCollectionNotFound  = errors.New("items: collection not found")
	ErrInsufficientBalance = errors.New("items: insufficient item balance")
)

// ItemRecord tracks one unique or semi-fungible item. Balances maps holder
// addresses (hex encoded) to the quantity they hold; the sum equals Supply.
type ItemRecord struct {
	Collection [20]byte          `json:"collection"`
	ID         uint64            `json:"id"`
	Minter     [20]byte          `json:"minter"`
	Supply     uint64            `json:"supply"`
	Balances   map[string]uint64 `json:"balances"`
}

// CollectionRecord captures collection provenance. Internal collections are
// minted through this system and are barred from collection-level royalties.
type CollectionRecord struct {
	Address  [20]byte `json:"address"`
	Internal bool     `json:"internal"`
}

type itemState interface {
	ItemGet(collection [20]byte, item uint64) (*ItemRecord, bool)
	ItemPut(*ItemRecord) error
	CollectionGet(collection [20]byte) (*CollectionRecord, bool)
	CollectionPut(*CollectionRecord) error
	ApprovalGet(owner, operator [20]byte) bool
	ApprovalPut(owner, operator [20]byte, approved bool) error
}

// Ledger is the item-ownership collaborator consumed by every sale path. It
// exposes the transfer/approval primitives of the external item registry,
// persisted through the marketplace state manager.
type Ledger struct {
	state itemState
}

// NewLedger creates an item ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// SetState configures the state backend.
func (l *Ledger) SetState(state itemState) { l.state = state }

func holderKey(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

// RegisterCollection records collection provenance. Re-registration keeps the
// original flag so external collections cannot later masquerade as internal.
func (l *Ledger) RegisterCollection(collection [20]byte, internal bool) error {
	if l == nil || l.state == nil {
		return errNilItemState
	}
	if _, ok := l.state.CollectionGet(collection); ok {
		return nil
	}
	return l.state.CollectionPut(&CollectionRecord{Address: collection, Internal: internal})
}

// CollectionInternal reports whether the collection was minted through this
// system. Unknown collections count as external.
func (l *Ledger) CollectionInternal(collection [20]byte) (bool, error) {
	if l == nil || l.state == nil {
		return false, errNilItemState
	}
	record, ok := l.state.CollectionGet(collection)
	if !ok {
		return false, nil
	}
	return record.Internal, nil
}

// Mint creates quantity units of a new item owned by owner. Minting an
// existing item id is rejected to keep supplies stable.
func (l *Ledger) Mint(collection [20]byte, item uint64, owner [20]byte, quantity uint64) error {
	if l == nil || l.state == nil {
		return errNilItemState
	}
	if quantity == 0 {
		return fmt.Errorf("items: mint quantity must be positive")
	}
	if _, ok := l.state.ItemGet(collection, item); ok {
		return fmt.Errorf("items: item %d already minted", item)
	}
	if _, ok := l.state.CollectionGet(collection); !ok {
		if err := l.state.CollectionPut(&CollectionRecord{Address: collection, Internal: true}); err != nil {
			return err
		}
	}
	record := &ItemRecord{
		Collection: collection,
		ID:         item,
		Minter:     owner,
		Supply:     quantity,
		Balances:   map[string]uint64{holderKey(owner): quantity},
	}
	return l.state.ItemPut(record)
}

// OwnerOf returns the sole holder of the item. ok is false when the item does
// not exist or its supply is split across holders.
func (l *Ledger) OwnerOf(collection [20]byte, item uint64) ([20]byte, bool, error) {
	if l == nil || l.state == nil {
		return [20]byte{}, false, errNilItemState
	}
	record, ok := l.state.ItemGet(collection, item)
	if !ok {
		return [20]byte{}, false, nil
	}
	var owner [20]byte
	holders := 0
	for key, qty := range record.Balances {
		if qty == 0 {
			continue
		}
		holders++
		if holders > 1 {
			return [20]byte{}, false, nil
		}
		raw, err := hex.DecodeString(key)
		if err != nil || len(raw) != 20 {
			return [20]byte{}, false, fmt.Errorf("items: corrupt holder key %q", key)
		}
		copy(owner[:], raw)
	}
	if holders == 0 {
		return [20]byte{}, false, nil
	}
	return owner, true, nil
}

// BalanceOf returns how many units of the item the owner holds.
func (l *Ledger) BalanceOf(owner [20]byte, collection [20]byte, item uint64) (uint64, error) {
	if l == nil || l.state == nil {
		return 0, errNilItemState
	}
	record, ok := l.state.ItemGet(collection, item)
	if !ok {
		return 0, nil
	}
	return record.Balances[holderKey(owner)], nil
}

// IsApprovedForAll reports whether operator may move owner's items.
func (l *Ledger) IsApprovedForAll(owner, operator [20]byte) bool {
	if l == nil || l.state == nil {
		return false
	}
	return l.state.ApprovalGet(owner, operator)
}

// SetApprovalForAll grants or revokes operator transfer rights over all of
// owner's items.
func (l *Ledger) SetApprovalForAll(owner, operator [20]byte, approved bool) error {
	if l == nil || l.state == nil {
		return errNilItemState
	}
	return l.state.ApprovalPut(owner, operator, approved)
}

// Transfer moves quantity units of the item between holders.
func (l *Ledger) Transfer(collection [20]byte, item uint64, from, to [20]byte, quantity uint64) error {
	if l == nil || l.state == nil {
		return errNilItemState
	}
	if quantity == 0 {
		return fmt.Errorf("items: transfer quantity must be positive")
	}
	record, ok := l.state.ItemGet(collection, item)
	if !ok {
		return ErrItemNotFound
	}
	fromKey := holderKey(from)
	if record.Balances[fromKey] < quantity {
		return fmt.Errorf("%w: holder has %d of %d", ErrInsufficientBalance, record.Balances[fromKey], quantity)
	}
	record.Balances[fromKey] -= quantity
	if record.Balances[fromKey] == 0 {
		delete(record.Balances, fromKey)
	}
	record.Balances[holderKey(to)] += quantity
	return l.state.ItemPut(record)
}
