package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"agora/core/types"
	"agora/native/auction"
	"agora/native/market"
	"agora/native/registry"
	"agora/native/royalty"
	"agora/storage"
)

// Manager is the single persistence layer shared by every engine. It stores
// each record family under its own key prefix so records can be enumerated
// without a secondary index.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	accountPrefix           = "account/"
	itemPrefix              = "item/"
	collectionPrefix        = "collection/"
	approvalPrefix          = "approval/"
	itemRoyaltyPrefix       = "royalty/item/"
	collectionRoyaltyPrefix = "royalty/collection/"
	listingPrefix           = "market/listing/"
	offerPrefix             = "market/offer/"
	auctionPrefix           = "auction/"
	tokenPrefix             = "token/"
	pricePrefix             = "price/"
)

func accountKey(addr [20]byte) []byte {
	return []byte(accountPrefix + hex.EncodeToString(addr[:]))
}

func itemKey(collection [20]byte, item uint64) []byte {
	return []byte(fmt.Sprintf("%s%x/%d", itemPrefix, collection, item))
}

func collectionKey(collection [20]byte) []byte {
	return []byte(collectionPrefix + hex.EncodeToString(collection[:]))
}

func approvalKey(owner, operator [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x/%x", approvalPrefix, owner, operator))
}

func itemRoyaltyKey(collection [20]byte, item uint64) []byte {
	return []byte(fmt.Sprintf("%s%x/%d", itemRoyaltyPrefix, collection, item))
}

func collectionRoyaltyKey(collection [20]byte) []byte {
	return []byte(collectionRoyaltyPrefix + hex.EncodeToString(collection[:]))
}

func listingKey(collection [20]byte, item uint64, seller [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x/%d/%x", listingPrefix, collection, item, seller))
}

func offerKey(collection [20]byte, item uint64, buyer [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x/%d/%x", offerPrefix, collection, item, buyer))
}

func auctionKey(collection [20]byte, item uint64) []byte {
	return []byte(fmt.Sprintf("%s%x/%d", auctionPrefix, collection, item))
}

func tokenKey(symbol string) []byte {
	return []byte(tokenPrefix + strings.ToUpper(symbol))
}

func priceKey(symbol string) []byte {
	return []byte(pricePrefix + strings.ToUpper(symbol))
}

func (m *Manager) getJSON(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, data)
}

// GetAccount loads an account, returning a normalized empty account when the
// address has never been written.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	account := types.NewAccount()
	ok, err := m.getJSON(accountKey(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	account.Normalize()
	return account, nil
}

// PutAccount persists an account.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return errors.New("state: nil account")
	}
	account.Normalize()
	return m.putJSON(accountKey(addr), account)
}

func (m *Manager) ItemGet(collection [20]byte, item uint64) (*registry.ItemRecord, bool) {
	record := new(registry.ItemRecord)
	ok, err := m.getJSON(itemKey(collection, item), record)
	if err != nil || !ok {
		return nil, false
	}
	return record, true
}

func (m *Manager) ItemPut(record *registry.ItemRecord) error {
	if record == nil {
		return errors.New("state: nil item record")
	}
	return m.putJSON(itemKey(record.Collection, record.ID), record)
}

func (m *Manager) CollectionGet(collection [20]byte) (*registry.CollectionRecord, bool) {
	record := new(registry.CollectionRecord)
	ok, err := m.getJSON(collectionKey(collection), record)
	if err != nil || !ok {
		return nil, false
	}
	return record, true
}

func (m *Manager) CollectionPut(record *registry.CollectionRecord) error {
	if record == nil {
		return errors.New("state: nil collection record")
	}
	return m.putJSON(collectionKey(record.Address), record)
}

func (m *Manager) ApprovalGet(owner, operator [20]byte) bool {
	data, err := m.db.Get(approvalKey(owner, operator))
	if err != nil {
		return false
	}
	return len(data) == 1 && data[0] == 1
}

func (m *Manager) ApprovalPut(owner, operator [20]byte, approved bool) error {
	if !approved {
		err := m.db.Delete(approvalKey(owner, operator))
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil
		}
		return err
	}
	return m.db.Put(approvalKey(owner, operator), []byte{1})
}

func (m *Manager) ItemRoyaltyGet(collection [20]byte, item uint64) (*royalty.ItemRoyalty, bool) {
	record := new(royalty.ItemRoyalty)
	ok, err := m.getJSON(itemRoyaltyKey(collection, item), record)
	if err != nil || !ok {
		return nil, false
	}
	return record, true
}

func (m *Manager) ItemRoyaltyPut(record *royalty.ItemRoyalty) error {
	if record == nil {
		return errors.New("state: nil item royalty")
	}
	return m.putJSON(itemRoyaltyKey(record.Collection, record.ItemID), record)
}

func (m *Manager) CollectionRoyaltyGet(collection [20]byte) (*royalty.CollectionRoyalty, bool) {
	record := new(royalty.CollectionRoyalty)
	ok, err := m.getJSON(collectionRoyaltyKey(collection), record)
	if err != nil || !ok {
		return nil, false
	}
	return record, true
}

func (m *Manager) CollectionRoyaltyPut(record *royalty.CollectionRoyalty) error {
	if record == nil {
		return errors.New("state: nil collection royalty")
	}
	return m.putJSON(collectionRoyaltyKey(record.Collection), record)
}

func (m *Manager) ListingGet(collection [20]byte, item uint64, seller [20]byte) (*market.Listing, bool) {
	listing := new(market.Listing)
	ok, err := m.getJSON(listingKey(collection, item, seller), listing)
	if err != nil || !ok {
		return nil, false
	}
	return listing, true
}

func (m *Manager) ListingPut(listing *market.Listing) error {
	if listing == nil {
		return errors.New("state: nil listing")
	}
	return m.putJSON(listingKey(listing.Collection, listing.ItemID, listing.Seller), listing)
}

func (m *Manager) ListingDelete(collection [20]byte, item uint64, seller [20]byte) error {
	err := m.db.Delete(listingKey(collection, item, seller))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	return err
}

// ListingsByItem enumerates every live listing of an item across sellers,
// ordered by seller address.
func (m *Manager) ListingsByItem(collection [20]byte, item uint64) ([]*market.Listing, error) {
	prefix := []byte(fmt.Sprintf("%s%x/%d/", listingPrefix, collection, item))
	var (
		out       []*market.Listing
		decodeErr error
	)
	err := m.db.Iterate(prefix, func(key, value []byte) bool {
		listing := new(market.Listing)
		if err := json.Unmarshal(value, listing); err != nil {
			decodeErr = fmt.Errorf("state: decode %q: %w", key, err)
			return false
		}
		out = append(out, listing)
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return out, nil
}

func (m *Manager) OfferGet(collection [20]byte, item uint64, buyer [20]byte) (*market.Offer, bool) {
	offer := new(market.Offer)
	ok, err := m.getJSON(offerKey(collection, item, buyer), offer)
	if err != nil || !ok {
		return nil, false
	}
	return offer, true
}

func (m *Manager) OfferPut(offer *market.Offer) error {
	if offer == nil {
		return errors.New("state: nil offer")
	}
	return m.putJSON(offerKey(offer.Collection, offer.ItemID, offer.Buyer), offer)
}

func (m *Manager) OfferDelete(collection [20]byte, item uint64, buyer [20]byte) error {
	err := m.db.Delete(offerKey(collection, item, buyer))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (m *Manager) AuctionGet(collection [20]byte, item uint64) (*auction.Auction, bool) {
	record := new(auction.Auction)
	ok, err := m.getJSON(auctionKey(collection, item), record)
	if err != nil || !ok {
		return nil, false
	}
	return record, true
}

func (m *Manager) AuctionPut(record *auction.Auction) error {
	if record == nil {
		return errors.New("state: nil auction")
	}
	return m.putJSON(auctionKey(record.Collection, record.ItemID), record)
}

func (m *Manager) AuctionDelete(collection [20]byte, item uint64) error {
	err := m.db.Delete(auctionKey(collection, item))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (m *Manager) TokenGet(symbol string) (*registry.TokenInfo, bool) {
	info := new(registry.TokenInfo)
	ok, err := m.getJSON(tokenKey(symbol), info)
	if err != nil || !ok {
		return nil, false
	}
	return info, true
}

func (m *Manager) TokenPut(info *registry.TokenInfo) error {
	if info == nil {
		return errors.New("state: nil token info")
	}
	return m.putJSON(tokenKey(info.Symbol), info)
}

func (m *Manager) TokenDelete(symbol string) error {
	err := m.db.Delete(tokenKey(symbol))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	return err
}

// TokenSymbols lists the accepted token symbols in lexical order.
func (m *Manager) TokenSymbols() []string {
	var symbols []string
	_ = m.db.Iterate([]byte(tokenPrefix), func(key, _ []byte) bool {
		symbols = append(symbols, strings.TrimPrefix(string(key), tokenPrefix))
		return true
	})
	sort.Strings(symbols)
	return symbols
}

func (m *Manager) PriceGet(symbol string) (*big.Int, bool) {
	data, err := m.db.Get(priceKey(symbol))
	if err != nil {
		return nil, false
	}
	price, ok := new(big.Int).SetString(string(data), 10)
	if !ok {
		return nil, false
	}
	return price, true
}

func (m *Manager) PricePut(symbol string, price *big.Int) error {
	if price == nil {
		return errors.New("state: nil price")
	}
	return m.db.Put(priceKey(symbol), []byte(price.String()))
}
