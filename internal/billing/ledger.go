package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tollgate-service/internal/domain/toll"
)

// Expected billing outcomes and faults. The first three are business results
// returned to the caller, never panics; ErrConcurrencyConflict means a lock
// could not be taken and the whole charge attempt may be retried once.
var (
	ErrUnregisteredVehicle = errors.New("vehicle not registered")
	ErrUnknownVehicleType  = errors.New("unknown vehicle type")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrConcurrencyConflict = errors.New("concurrent charge conflict")
)

// AccountStore is the external account capability. DebitAndRecord must be
// atomic: the balance check, the deduction and the transaction insert happen
// as one unit serialized per account, so two concurrent charges can never
// both pass the check against the same stale balance.
type AccountStore interface {
	FindByPlate(ctx context.Context, plate string) (*toll.Account, error)
	DebitAndRecord(ctx context.Context, plate string, vt toll.VehicleType, fee decimal.Decimal, evidence string) (*toll.Transaction, error)
}

// Ledger performs the balance check-and-deduct protocol against the account
// store and shapes the outcome for the pipeline.
type Ledger struct {
	store AccountStore
	log   zerolog.Logger
}

// NewLedger creates a Ledger over the given store.
func NewLedger(store AccountStore, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: store,
		log:   log.With().Str("component", "ledger").Logger(),
	}
}

// Charge applies the toll fee for one qualifying pass. When vehicleType is
// empty it is resolved from the registered account. Business outcomes come
// back as the sentinel errors above; the returned transaction snapshots the
// remaining balance at creation time.
func (l *Ledger) Charge(ctx context.Context, plate string, vehicleType toll.VehicleType, evidence string) (*toll.Transaction, error) {
	if plate == "" {
		return nil, fmt.Errorf("%w: empty plate", ErrUnregisteredVehicle)
	}

	if vehicleType == "" {
		acct, err := l.store.FindByPlate(ctx, plate)
		if err != nil {
			return nil, err
		}
		vehicleType = acct.VehicleType
	}

	fee, err := RateFor(vehicleType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVehicleType, vehicleType)
	}

	tx, err := l.store.DebitAndRecord(ctx, plate, vehicleType, fee, evidence)
	if err != nil {
		return nil, err
	}

	l.log.Info().
		Str("plate", plate).
		Str("vehicle_type", string(vehicleType)).
		Str("fee", fee.String()).
		Str("remaining_balance", tx.RemainingBalance.String()).
		Str("transaction_id", tx.ID.String()).
		Msg("toll charged")
	return tx, nil
}

// Outcome maps a Charge error to the billing outcome reported to callers.
// Faults that are not business results (e.g. a concurrency conflict the
// caller did not retry away) map to the empty outcome.
func Outcome(err error) toll.BillingOutcome {
	switch {
	case err == nil:
		return toll.OutcomeCharged
	case errors.Is(err, ErrInsufficientBalance):
		return toll.OutcomeInsufficientBalance
	case errors.Is(err, ErrUnregisteredVehicle):
		return toll.OutcomeUnregistered
	case errors.Is(err, ErrUnknownVehicleType):
		return toll.OutcomeUnknownVehicleType
	default:
		return ""
	}
}
