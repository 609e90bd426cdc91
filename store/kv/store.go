// Package kv implements store.Store on top of an embedded bbolt
// database, using four top-level buckets as column families: accounts,
// transactions, transactions_by_user (a secondary index), and
// usage_events. Records are encoded with CBOR for a compact,
// schema-evolvable binary format.
//
// Keys are the canonical binary identifier forms: 16-byte UUIDs for
// accounts, 16-byte ULIDs for transactions (byte order equals
// chronological order), and the raw event-id bytes for usage events.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	bbolt "go.etcd.io/bbolt"

	ledger "github.com/xraph/zcredit-ledger"
	"github.com/xraph/zcredit-ledger/account"
	"github.com/xraph/zcredit-ledger/id"
	"github.com/xraph/zcredit-ledger/store"
	"github.com/xraph/zcredit-ledger/txn"
	"github.com/xraph/zcredit-ledger/types"
	"github.com/xraph/zcredit-ledger/usage"
)

var (
	bucketAccounts           = []byte("accounts")
	bucketTransactions       = []byte("transactions")
	bucketTransactionsByUser = []byte("transactions_by_user")
	bucketUsageEvents        = []byte("usage_events")
)

// Store is a bbolt-backed store.Store. Every compound operation commits
// as a single bbolt.Update transaction, whose fsync-on-commit gives the
// required durability before acknowledgment. An in-process per-user
// mutex serializes the read-modify-write cycle across concurrent
// callers on the same user, since bbolt's single writer transaction
// alone does not prevent two goroutines from racing to open
// transactions with stale reads.
type Store struct {
	db *bbolt.DB

	userLocks   map[string]*sync.Mutex
	userLocksMu sync.Mutex
}

// Open opens (or creates) the database at path and ensures all column
// family buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("kv: open: %w: %v", ledger.ErrDatabase, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketAccounts, bucketTransactions, bucketTransactionsByUser, bucketUsageEvents} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kv: init buckets: %w", err)
	}
	return &Store{db: db, userLocks: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) lockFor(user id.UserID) *sync.Mutex {
	key := user.String()
	s.userLocksMu.Lock()
	defer s.userLocksMu.Unlock()
	l, ok := s.userLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[key] = l
	}
	return l
}

func encode(v any) ([]byte, error) {
	b, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("kv: encode: %w: %v", ledger.ErrSerialization, err)
	}
	return b, nil
}

func decode(b []byte, v any) error {
	if err := cbor.Unmarshal(b, v); err != nil {
		return fmt.Errorf("kv: decode: %w: %v", ledger.ErrSerialization, err)
	}
	return nil
}

// PutAccount implements store.Store.
func (s *Store) PutAccount(_ context.Context, a *account.Account) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putAccount(tx, a)
	})
}

func putAccount(tx *bbolt.Tx, a *account.Account) error {
	b, err := encode(a)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketAccounts).Put(a.UserID.Bytes(), b)
}

func getAccount(tx *bbolt.Tx, user id.UserID) (*account.Account, error) {
	raw := tx.Bucket(bucketAccounts).Get(user.Bytes())
	if raw == nil {
		return nil, ledger.ErrNotFound
	}
	var a account.Account
	if err := decode(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount implements store.Store.
func (s *Store) GetAccount(_ context.Context, user id.UserID) (*account.Account, error) {
	var a *account.Account
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		a, err = getAccount(tx, user)
		return err
	})
	return a, err
}

// DeleteAccountRecord implements store.Store.
func (s *Store) DeleteAccountRecord(_ context.Context, user id.UserID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return deleteAccount(tx, user)
	})
}

// deleteAccount removes the account row and the user's whole
// transactions_by_user index range in one write transaction. The
// transactions and usage_events rows themselves stay behind for audit,
// reachable by id.
func deleteAccount(tx *bbolt.Tx, user id.UserID) error {
	key := user.Bytes()
	if tx.Bucket(bucketAccounts).Get(key) == nil {
		return ledger.ErrNotFound
	}
	if err := tx.Bucket(bucketAccounts).Delete(key); err != nil {
		return err
	}
	if err := tx.Bucket(bucketTransactionsByUser).DeleteBucket(key); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
		return err
	}
	return nil
}

// PutTransaction implements store.Store, co-writing the by-user index
// within the same bbolt transaction.
func (s *Store) PutTransaction(_ context.Context, t *txn.CreditTransaction) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putTransaction(tx, t)
	})
}

func putTransaction(tx *bbolt.Tx, t *txn.CreditTransaction) error {
	b, err := encode(t)
	if err != nil {
		return err
	}
	key := t.TransactionID.Bytes()
	if err := tx.Bucket(bucketTransactions).Put(key, b); err != nil {
		return err
	}
	userBucket, err := tx.Bucket(bucketTransactionsByUser).CreateBucketIfNotExists(t.UserID.Bytes())
	if err != nil {
		return err
	}
	return userBucket.Put(key, []byte{})
}

// GetTransaction implements store.Store.
func (s *Store) GetTransaction(_ context.Context, txID id.TransactionID) (*txn.CreditTransaction, error) {
	var t txn.CreditTransaction
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketTransactions).Get(txID.Bytes())
		if raw == nil {
			return ledger.ErrNotFound
		}
		return decode(raw, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTransactionsByUser implements store.Store. The index bucket's keys
// are 16-byte ULIDs whose byte order is creation order, so a reverse
// cursor walk yields newest-first without a secondary timestamp. One
// extra read past the page determines HasMore.
func (s *Store) ListTransactionsByUser(_ context.Context, user id.UserID, opts store.ListTransactionsOpts) (*store.TransactionPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	page := &store.TransactionPage{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		userBucket := tx.Bucket(bucketTransactionsByUser).Bucket(user.Bytes())
		if userBucket == nil {
			return nil
		}
		txBucket := tx.Bucket(bucketTransactions)
		c := userBucket.Cursor()

		skipped := 0
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			if skipped < offset {
				skipped++
				continue
			}
			if len(page.Transactions) == limit {
				page.HasMore = true
				return nil
			}
			t, err := decodeTxnAt(txBucket, k)
			if err != nil {
				return err
			}
			page.Transactions = append(page.Transactions, t)
		}
		return nil
	})
	return page, err
}

func decodeTxnAt(txBucket *bbolt.Bucket, key []byte) (*txn.CreditTransaction, error) {
	raw := txBucket.Get(key)
	if raw == nil {
		return nil, fmt.Errorf("kv: dangling index entry %x: %w", key, ledger.ErrNotFound)
	}
	var t txn.CreditTransaction
	if err := decode(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// HasUsageEvent implements store.Store.
func (s *Store) HasUsageEvent(_ context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketUsageEvents).Get([]byte(eventID)) != nil
		return nil
	})
	return exists, err
}

// PutUsageEvent implements store.Store.
func (s *Store) PutUsageEvent(_ context.Context, evt *usage.Event) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putUsageEvent(tx, evt)
	})
}

func putUsageEvent(tx *bbolt.Tx, evt *usage.Event) error {
	b, err := encode(evt)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketUsageEvents).Put([]byte(evt.EventID), b)
}

// GetUsageEvent implements store.Store.
func (s *Store) GetUsageEvent(_ context.Context, eventID string) (*usage.Event, error) {
	var evt usage.Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketUsageEvents).Get([]byte(eventID))
		if raw == nil {
			return ledger.ErrNotFound
		}
		return decode(raw, &evt)
	})
	if err != nil {
		return nil, err
	}
	return &evt, nil
}

// ProcessUsage implements store.Store's atomic debit-and-record
// operation as a single bbolt write transaction.
func (s *Store) ProcessUsage(_ context.Context, evt *usage.Event, costCents int64, description string) (*account.Account, *txn.CreditTransaction, error) {
	lock := s.lockFor(evt.UserID)
	lock.Lock()
	defer lock.Unlock()

	var (
		result *account.Account
		made   *txn.CreditTransaction
	)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketUsageEvents).Get([]byte(evt.EventID)) != nil {
			return &ledger.DuplicateEventError{EventID: evt.EventID}
		}

		a, err := getAccount(tx, evt.UserID)
		if err != nil {
			return err
		}

		required := types.Cents(costCents)
		if !a.HasSufficientBalance(required) {
			return &ledger.InsufficientCreditsError{
				UserID:        evt.UserID.String(),
				BalanceCents:  a.BalanceCents,
				RequiredCents: required,
			}
		}

		a.BalanceCents = a.BalanceCents.Sub(required)
		a.LifetimeUsedCents = a.LifetimeUsedCents.Add(required)
		a.Touch()

		t := txn.New(evt.UserID, required.Negate(), txn.Usage, a.BalanceCents, description, evt.Metadata)

		if err := putAccount(tx, a); err != nil {
			return err
		}
		if err := putTransaction(tx, t); err != nil {
			return err
		}
		if err := putUsageEvent(tx, evt); err != nil {
			return err
		}

		result, made = a, t
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, made, nil
}

func addCredits(tx *bbolt.Tx, user id.UserID, amountCents int64, typ txn.Type, description string, metadata map[string]any) (*account.Account, *txn.CreditTransaction, error) {
	a, err := getAccount(tx, user)
	if err != nil {
		return nil, nil, err
	}

	amount := types.Cents(amountCents)
	a.BalanceCents = a.BalanceCents.Add(amount)
	switch typ {
	case txn.Purchase:
		a.LifetimePurchasedCents = a.LifetimePurchasedCents.Add(amount)
	case txn.SubscriptionGrant:
		a.LifetimeGrantedCents = a.LifetimeGrantedCents.Add(amount)
	}
	a.Touch()

	t := txn.New(user, amount, typ, a.BalanceCents, description, metadata)

	if err := putAccount(tx, a); err != nil {
		return nil, nil, err
	}
	if err := putTransaction(tx, t); err != nil {
		return nil, nil, err
	}
	return a, t, nil
}

// AddCredits implements store.Store's atomic credit-and-record
// operation.
func (s *Store) AddCredits(_ context.Context, user id.UserID, amountCents int64, typ txn.Type, description string, metadata map[string]any) (*account.Account, *txn.CreditTransaction, error) {
	lock := s.lockFor(user)
	lock.Lock()
	defer lock.Unlock()

	var (
		result *account.Account
		made   *txn.CreditTransaction
	)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		result, made, err = addCredits(tx, user, amountCents, typ, description, metadata)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return result, made, nil
}

// AddCreditsIdempotent implements store.Store. The marker is a synthetic
// record in the usage_events bucket under idempotencyKey; the check and
// the credit commit in one write transaction.
func (s *Store) AddCreditsIdempotent(_ context.Context, user id.UserID, amountCents int64, typ txn.Type, description string, metadata map[string]any, idempotencyKey string) (*account.Account, *txn.CreditTransaction, bool, error) {
	lock := s.lockFor(user)
	lock.Lock()
	defer lock.Unlock()

	var (
		result    *account.Account
		made      *txn.CreditTransaction
		duplicate bool
	)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketUsageEvents).Get([]byte(idempotencyKey)) != nil {
			duplicate = true
			a, err := getAccount(tx, user)
			if err != nil {
				return err
			}
			result = a
			return nil
		}

		a, t, err := addCredits(tx, user, amountCents, typ, description, metadata)
		if err != nil {
			return err
		}
		marker := &usage.Event{
			EventID:   idempotencyKey,
			UserID:    user,
			Source:    "idempotency-marker",
			Timestamp: time.Now().UTC(),
		}
		if err := putUsageEvent(tx, marker); err != nil {
			return err
		}
		result, made = a, t
		return nil
	})
	if err != nil {
		return nil, nil, duplicate, err
	}
	return result, made, duplicate, nil
}

// CreateAccount implements store.Store.
func (s *Store) CreateAccount(_ context.Context, user id.UserID, email string) (*account.Account, error) {
	lock := s.lockFor(user)
	lock.Lock()
	defer lock.Unlock()

	a := account.New(user, email)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketAccounts).Get(user.Bytes()) != nil {
			return ledger.ErrAlreadyExists
		}
		return putAccount(tx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAccountAtomic implements store.Store. The account row and its
// by-user index range go together; transactions and usage events are
// retained for audit.
func (s *Store) DeleteAccountAtomic(_ context.Context, user id.UserID) error {
	lock := s.lockFor(user)
	lock.Lock()
	defer lock.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		return deleteAccount(tx, user)
	})
}

// UpdateAccount implements store.Store.
func (s *Store) UpdateAccount(_ context.Context, user id.UserID, fn func(*account.Account) error) (*account.Account, error) {
	lock := s.lockFor(user)
	lock.Lock()
	defer lock.Unlock()

	var result *account.Account
	err := s.db.Update(func(tx *bbolt.Tx) error {
		a, err := getAccount(tx, user)
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
		a.Touch()
		if err := putAccount(tx, a); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Ping implements store.Store.
func (s *Store) Ping(_ context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error { return nil })
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
