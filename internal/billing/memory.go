package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tollgate-service/internal/domain/toll"
	"tollgate-service/internal/utils"
)

// MemoryStore is an in-process AccountStore. It backs tests and the
// database-less development mode; the postgres repository is the production
// implementation.
type MemoryStore struct {
	mu           sync.Mutex
	nextID       int64
	accounts     map[string]*toll.Account // keyed by normalized plate
	transactions []toll.Transaction
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		accounts: make(map[string]*toll.Account),
	}
}

// CreateAccount registers a vehicle owner. The plate is stored normalized.
func (s *MemoryStore) CreateAccount(ctx context.Context, acct *toll.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := utils.NormalizePlate(acct.Plate)
	acct.ID = s.nextID
	acct.Plate = key
	s.nextID++
	copied := *acct
	s.accounts[key] = &copied
	return nil
}

// FindByPlate resolves an account by canonical plate text.
func (s *MemoryStore) FindByPlate(ctx context.Context, plate string) (*toll.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[utils.NormalizePlate(plate)]
	if !ok {
		return nil, ErrUnregisteredVehicle
	}
	copied := *acct
	return &copied, nil
}

// TopUp adds funds to an account and returns the updated view.
func (s *MemoryStore) TopUp(ctx context.Context, plate string, amount decimal.Decimal) (*toll.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[utils.NormalizePlate(plate)]
	if !ok {
		return nil, ErrUnregisteredVehicle
	}
	acct.Balance = acct.Balance.Add(amount)
	copied := *acct
	return &copied, nil
}

// DebitAndRecord atomically checks the balance, deducts the fee and appends
// the transaction record under one lock.
func (s *MemoryStore) DebitAndRecord(ctx context.Context, plate string, vt toll.VehicleType, fee decimal.Decimal, evidence string) (*toll.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := utils.NormalizePlate(plate)
	acct, ok := s.accounts[key]
	if !ok {
		return nil, ErrUnregisteredVehicle
	}
	if acct.Balance.LessThan(fee) {
		return nil, ErrInsufficientBalance
	}

	acct.Balance = acct.Balance.Sub(fee)
	tx := toll.Transaction{
		ID:               uuid.New(),
		AccountID:        acct.ID,
		Plate:            key,
		VehicleType:      vt,
		Fee:              fee,
		RemainingBalance: acct.Balance,
		Evidence:         evidence,
		CreatedAt:        time.Now(),
	}
	s.transactions = append(s.transactions, tx)
	return &tx, nil
}

// ListTransactions returns recorded transactions, newest first, optionally
// filtered by plate.
func (s *MemoryStore) ListTransactions(ctx context.Context, plate *string, limit, offset int) ([]toll.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var key string
	if plate != nil {
		key = utils.NormalizePlate(*plate)
	}

	matched := make([]toll.Transaction, 0, len(s.transactions))
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if key != "" && tx.Plate != key {
			continue
		}
		matched = append(matched, tx)
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// SavePassageEvent is a no-op for the in-memory store; passage history only
// exists in the database-backed repository.
func (s *MemoryStore) SavePassageEvent(ctx context.Context, event *toll.PassageEventPayload, outcome toll.BillingOutcome) error {
	return nil
}
