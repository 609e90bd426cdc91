// Package memory provides an in-memory reference implementation of
// store.Store, used in tests and as a template for the durable
// implementations.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	ledger "github.com/xraph/zcredit-ledger"
	"github.com/xraph/zcredit-ledger/account"
	"github.com/xraph/zcredit-ledger/id"
	"github.com/xraph/zcredit-ledger/store"
	"github.com/xraph/zcredit-ledger/txn"
	"github.com/xraph/zcredit-ledger/types"
	"github.com/xraph/zcredit-ledger/usage"
)

// Store is an in-memory store.Store. Mutating operations for the same
// user are serialized through a per-user mutex; a single RWMutex
// additionally guards the top-level maps themselves.
type Store struct {
	mu sync.RWMutex

	accounts           map[string]*account.Account
	transactions       map[string]*txn.CreditTransaction
	transactionsByUser map[string][]string // user string -> ordered txn ID strings, oldest first
	usageEvents        map[string]*usage.Event

	userLocks   map[string]*sync.Mutex
	userLocksMu sync.Mutex
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		accounts:           make(map[string]*account.Account),
		transactions:       make(map[string]*txn.CreditTransaction),
		transactionsByUser: make(map[string][]string),
		usageEvents:        make(map[string]*usage.Event),
		userLocks:          make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing all mutations for a given user,
// creating it on first use.
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

// PutAccount implements store.Store.
func (s *Store) PutAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.UserID.String()] = a.Clone()
	return nil
}

// GetAccount implements store.Store.
func (s *Store) GetAccount(_ context.Context, user id.UserID) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[user.String()]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return a.Clone(), nil
}

// DeleteAccountRecord implements store.Store.
func (s *Store) DeleteAccountRecord(_ context.Context, user id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteAccountLocked(user)
}

// deleteAccountLocked removes the account row and the user's by-user
// index entries. The transaction and usage-event rows stay behind for
// audit, reachable by id.
func (s *Store) deleteAccountLocked(user id.UserID) error {
	key := user.String()
	if _, ok := s.accounts[key]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.accounts, key)
	delete(s.transactionsByUser, key)
	return nil
}

// PutTransaction implements store.Store, co-writing the by-user index.
func (s *Store) PutTransaction(_ context.Context, t *txn.CreditTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putTransactionLocked(t)
	return nil
}

func (s *Store) putTransactionLocked(t *txn.CreditTransaction) {
	key := t.TransactionID.String()
	s.transactions[key] = t
	userKey := t.UserID.String()
	s.transactionsByUser[userKey] = append(s.transactionsByUser[userKey], key)
}

// GetTransaction implements store.Store.
func (s *Store) GetTransaction(_ context.Context, txID id.TransactionID) (*txn.CreditTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[txID.String()]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return t, nil
}

// ListTransactionsByUser implements store.Store. Ordering relies on
// TransactionID being ULID-based and therefore lexically sortable by
// creation time; results are newest-first.
func (s *Store) ListTransactionsByUser(_ context.Context, user id.UserID, opts store.ListTransactionsOpts) (*store.TransactionPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := append([]string(nil), s.transactionsByUser[user.String()]...)
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	page := &store.TransactionPage{}
	for i := offset; i < len(keys) && len(page.Transactions) < limit; i++ {
		page.Transactions = append(page.Transactions, s.transactions[keys[i]])
	}
	page.HasMore = offset+len(page.Transactions) < len(keys)
	return page, nil
}

// HasUsageEvent implements store.Store.
func (s *Store) HasUsageEvent(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.usageEvents[eventID]
	return ok, nil
}

// PutUsageEvent implements store.Store.
func (s *Store) PutUsageEvent(_ context.Context, evt *usage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usageEvents[evt.EventID] = evt
	return nil
}

// GetUsageEvent implements store.Store.
func (s *Store) GetUsageEvent(_ context.Context, eventID string) (*usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evt, ok := s.usageEvents[eventID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return evt, nil
}

// ProcessUsage implements store.Store's atomic debit-and-record
// operation.
func (s *Store) ProcessUsage(_ context.Context, evt *usage.Event, costCents int64, description string) (*account.Account, *txn.CreditTransaction, error) {
	lock := s.lockFor(evt.UserID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usageEvents[evt.EventID]; ok {
		return nil, nil, &ledger.DuplicateEventError{EventID: evt.EventID}
	}

	a, ok := s.accounts[evt.UserID.String()]
	if !ok {
		return nil, nil, ledger.ErrNotFound
	}

	required := types.Cents(costCents)
	if !a.HasSufficientBalance(required) {
		return nil, nil, &ledger.InsufficientCreditsError{
			UserID:        evt.UserID.String(),
			BalanceCents:  a.BalanceCents,
			RequiredCents: required,
		}
	}

	next := a.Clone()
	next.BalanceCents = next.BalanceCents.Sub(required)
	next.LifetimeUsedCents = next.LifetimeUsedCents.Add(required)
	next.Touch()

	t := txn.New(evt.UserID, required.Negate(), txn.Usage, next.BalanceCents, description, evt.Metadata)

	s.accounts[evt.UserID.String()] = next
	s.putTransactionLocked(t)
	s.usageEvents[evt.EventID] = evt

	return next.Clone(), t, nil
}

// AddCredits implements store.Store's atomic credit-and-record
// operation.
func (s *Store) AddCredits(_ context.Context, user id.UserID, amountCents int64, typ txn.Type, description string, metadata map[string]any) (*account.Account, *txn.CreditTransaction, error) {
	lock := s.lockFor(user)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addCreditsLocked(user, amountCents, typ, description, metadata)
}

func (s *Store) addCreditsLocked(user id.UserID, amountCents int64, typ txn.Type, description string, metadata map[string]any) (*account.Account, *txn.CreditTransaction, error) {
	a, ok := s.accounts[user.String()]
	if !ok {
		return nil, nil, ledger.ErrNotFound
	}

	amount := types.Cents(amountCents)
	next := a.Clone()
	next.BalanceCents = next.BalanceCents.Add(amount)
	switch typ {
	case txn.Purchase:
		next.LifetimePurchasedCents = next.LifetimePurchasedCents.Add(amount)
	case txn.SubscriptionGrant:
		next.LifetimeGrantedCents = next.LifetimeGrantedCents.Add(amount)
	}
	next.Touch()

	t := txn.New(user, amount, typ, next.BalanceCents, description, metadata)

	s.accounts[user.String()] = next
	s.putTransactionLocked(t)

	return next.Clone(), t, nil
}

// AddCreditsIdempotent implements store.Store. The marker lives in the
// usage-event map under idempotencyKey; its presence short-circuits the
// credit.
func (s *Store) AddCreditsIdempotent(_ context.Context, user id.UserID, amountCents int64, typ txn.Type, description string, metadata map[string]any, idempotencyKey string) (*account.Account, *txn.CreditTransaction, bool, error) {
	lock := s.lockFor(user)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usageEvents[idempotencyKey]; ok {
		a, found := s.accounts[user.String()]
		if !found {
			return nil, nil, true, ledger.ErrNotFound
		}
		return a.Clone(), nil, true, nil
	}

	a, t, err := s.addCreditsLocked(user, amountCents, typ, description, metadata)
	if err != nil {
		return nil, nil, false, err
	}
	s.usageEvents[idempotencyKey] = &usage.Event{
		EventID:   idempotencyKey,
		UserID:    user,
		Source:    "idempotency-marker",
		Timestamp: time.Now().UTC(),
	}
	return a, t, false, nil
}

// CreateAccount implements store.Store.
func (s *Store) CreateAccount(_ context.Context, user id.UserID, email string) (*account.Account, error) {
	lock := s.lockFor(user)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[user.String()]; ok {
		return nil, ledger.ErrAlreadyExists
	}
	a := account.New(user, email)
	s.accounts[user.String()] = a
	return a.Clone(), nil
}

// DeleteAccountAtomic implements store.Store. The account row and its
// by-user index entries go together; transactions and usage events are
// retained for audit.
func (s *Store) DeleteAccountAtomic(_ context.Context, user id.UserID) error {
	lock := s.lockFor(user)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteAccountLocked(user)
}

// UpdateAccount implements store.Store.
func (s *Store) UpdateAccount(_ context.Context, user id.UserID, fn func(*account.Account) error) (*account.Account, error) {
	lock := s.lockFor(user)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[user.String()]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	next := a.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Touch()
	s.accounts[user.String()] = next
	return next.Clone(), nil
}

// Ping implements store.Store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close implements store.Store.
func (s *Store) Close() error { return nil }
