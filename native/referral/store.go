package referral

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"refledger/storage"
)

var accountPrefix = []byte("referral/account/")

// State describes the persistence the referral engine needs. Reads of unknown
// addresses return an empty account; PutReferralAccounts must apply all
// updates or none.
type State interface {
	ReferralAccount(addr [20]byte) (*Account, error)
	PutReferralAccounts(updates []AccountUpdate) error
}

// Store persists referral accounts as RLP records in a key-value database.
type Store struct {
	db storage.Database
}

// NewStore wraps the supplied database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func accountKey(addr [20]byte) []byte {
	key := make([]byte, len(accountPrefix)+len(addr))
	copy(key, accountPrefix)
	copy(key[len(accountPrefix):], addr[:])
	return ethcrypto.Keccak256(key)
}

// ReferralAccount loads the record for addr.
func (s *Store) ReferralAccount(addr [20]byte) (*Account, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilState
	}
	data, err := s.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) || (err == nil && len(data) == 0) {
		return emptyAccount(), nil
	}
	if err != nil {
		return nil, err
	}
	account := new(Account)
	if err := rlp.DecodeBytes(data, account); err != nil {
		return nil, fmt.Errorf("decode referral account: %w", err)
	}
	return account.Clone(), nil
}

// PutReferralAccounts writes every update in a single batch.
func (s *Store) PutReferralAccounts(updates []AccountUpdate) error {
	if s == nil || s.db == nil {
		return ErrNilState
	}
	if len(updates) == 0 {
		return nil
	}
	batch := s.db.NewBatch()
	for _, update := range updates {
		encoded, err := rlp.EncodeToBytes(update.Account.Clone())
		if err != nil {
			return fmt.Errorf("encode referral account: %w", err)
		}
		batch.Put(accountKey(update.Address), encoded)
	}
	return batch.Write()
}
