package royalty

import (
	"errors"
	"fmt"

	"agora/core/events"
	"agora/core/types"
)

// MaxRoyaltyBps caps every royalty share at 20%.
const MaxRoyaltyBps uint32 = 2000

var (
	errNilState          = errors.New("royalty registry: state not configured")
	errNilItems          = errors.New("royalty registry: item ledger not configured")
	ErrNotOwner          = errors.New("royalty: not owning item")
	ErrNotMinter         = errors.New("royalty: royalty update restricted to minter")
	ErrNotAdmin          = errors.New("royalty: caller is not the admin")
	ErrInvalidRoyalty    = errors.New("royalty: invalid royalty")
	ErrInvalidCreator    = errors.New("royalty: invalid creator address")
	ErrInvalidCollection = errors.New("royalty: invalid collection address")
	ErrAlreadySet        = errors.New("royalty: royalty already set")
	ErrNotSet            = errors.New("royalty: royalty not set")
)

// ItemRoyalty is a per-item share registered by the item's owner at
// registration time; only that registrant (the minter) may update it later.
type ItemRoyalty struct {
	Collection [20]byte `json:"collection"`
	ItemID     uint64   `json:"itemId"`
	Bps        uint32   `json:"bps"`
	Minter     [20]byte `json:"minter"`
}

// CollectionRoyalty is an admin-registered share applied to every item of an
// external collection that carries no item-level royalty.
type CollectionRoyalty struct {
	Collection   [20]byte `json:"collection"`
	Creator      [20]byte `json:"creator"`
	Bps          uint32   `json:"bps"`
	FeeRecipient [20]byte `json:"feeRecipient"`
}

type registryState interface {
	ItemRoyaltyGet(collection [20]byte, item uint64) (*ItemRoyalty, bool)
	ItemRoyaltyPut(*ItemRoyalty) error
	CollectionRoyaltyGet(collection [20]byte) (*CollectionRoyalty, bool)
	CollectionRoyaltyPut(*CollectionRoyalty) error
}

// ItemView is the slice of the item ledger the registry consults for
// ownership and collection provenance.
type ItemView interface {
	OwnerOf(collection [20]byte, item uint64) ([20]byte, bool, error)
	CollectionInternal(collection [20]byte) (bool, error)
}

// Registry owns the royalty configuration consumed by the settlement engine.
type Registry struct {
	state   registryState
	items   ItemView
	emitter events.Emitter
	admin   [20]byte
}

// NewRegistry creates a royalty registry with a no-op emitter.
func NewRegistry() *Registry {
	return &Registry{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetItems configures the item ledger view.
func (r *Registry) SetItems(items ItemView) { r.items = items }

// SetAdmin configures the privileged account for collection royalties.
func (r *Registry) SetAdmin(addr [20]byte) { r.admin = addr }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) emit(evt *types.Event) {
	if r == nil || r.emitter == nil || evt == nil {
		return
	}
	r.emitter.Emit(royaltyEvent{evt: evt})
}

// RegisterItemRoyalty records a royalty share for the item. Only the current
// owner may register, and only once; the registrant becomes the minter of
// record for later updates.
func (r *Registry) RegisterItemRoyalty(caller, collection [20]byte, item uint64, bps uint32) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if r.items == nil {
		return errNilItems
	}
	if bps > MaxRoyaltyBps {
		return fmt.Errorf("%w: %d bps", ErrInvalidRoyalty, bps)
	}
	owner, ok, err := r.items.OwnerOf(collection, item)
	if err != nil {
		return err
	}
	if !ok || owner != caller {
		return ErrNotOwner
	}
	if _, exists := r.state.ItemRoyaltyGet(collection, item); exists {
		return ErrAlreadySet
	}
	record := &ItemRoyalty{Collection: collection, ItemID: item, Bps: bps, Minter: caller}
	if err := r.state.ItemRoyaltyPut(record); err != nil {
		return err
	}
	r.emit(NewItemRoyaltySetEvent(record))
	return nil
}

// UpdateItemRoyalty changes an existing item royalty. Minter only.
func (r *Registry) UpdateItemRoyalty(caller, collection [20]byte, item uint64, bps uint32) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if bps > MaxRoyaltyBps {
		return fmt.Errorf("%w: %d bps", ErrInvalidRoyalty, bps)
	}
	record, ok := r.state.ItemRoyaltyGet(collection, item)
	if !ok {
		return ErrNotSet
	}
	if record.Minter != caller {
		return ErrNotMinter
	}
	record.Bps = bps
	if err := r.state.ItemRoyaltyPut(record); err != nil {
		return err
	}
	r.emit(NewItemRoyaltySetEvent(record))
	return nil
}

// RegisterCollectionRoyalty installs a collection-wide royalty for an
// external collection. Admin only; internal collections use item royalties.
func (r *Registry) RegisterCollectionRoyalty(caller, collection, creator, feeRecipient [20]byte, bps uint32) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if r.items == nil {
		return errNilItems
	}
	if caller != r.admin || r.admin == ([20]byte{}) {
		return ErrNotAdmin
	}
	if creator == ([20]byte{}) {
		return ErrInvalidCreator
	}
	internal, err := r.items.CollectionInternal(collection)
	if err != nil {
		return err
	}
	if internal {
		return ErrInvalidCollection
	}
	if bps > MaxRoyaltyBps {
		return fmt.Errorf("%w: %d bps", ErrInvalidRoyalty, bps)
	}
	record := &CollectionRoyalty{Collection: collection, Creator: creator, Bps: bps, FeeRecipient: feeRecipient}
	if err := r.state.CollectionRoyaltyPut(record); err != nil {
		return err
	}
	r.emit(NewCollectionRoyaltySetEvent(caller, record))
	return nil
}

// RoyaltyFor resolves the royalty owed on a sale of the item: the item-level
// share when registered, otherwise the collection-level one, otherwise none.
// It satisfies the settlement engine's royalty view.
func (r *Registry) RoyaltyFor(collection [20]byte, item uint64) (uint32, [20]byte, bool) {
	if r == nil || r.state == nil {
		return 0, [20]byte{}, false
	}
	if record, ok := r.state.ItemRoyaltyGet(collection, item); ok {
		return record.Bps, record.Minter, true
	}
	if record, ok := r.state.CollectionRoyaltyGet(collection); ok {
		return record.Bps, record.FeeRecipient, true
	}
	return 0, [20]byte{}, false
}
