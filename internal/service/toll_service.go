package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tollgate-service/internal/billing"
	"tollgate-service/internal/domain/toll"
	"tollgate-service/internal/utils"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Store is the full persistence surface the toll service needs. Both the
// postgres repository and the in-memory store satisfy it.
type Store interface {
	billing.AccountStore
	CreateAccount(ctx context.Context, acct *toll.Account) error
	TopUp(ctx context.Context, plate string, amount decimal.Decimal) (*toll.Account, error)
	ListTransactions(ctx context.Context, plate *string, limit, offset int) ([]toll.Transaction, error)
	SavePassageEvent(ctx context.Context, event *toll.PassageEventPayload, outcome toll.BillingOutcome) error
}

// TollService handles camera passage events and account management around
// the debounce gate and the ledger.
type TollService struct {
	store  Store
	gate   *billing.DebounceGate
	ledger *billing.Ledger
	log    zerolog.Logger
}

func NewTollService(store Store, gate *billing.DebounceGate, ledger *billing.Ledger, log zerolog.Logger) *TollService {
	return &TollService{
		store:  store,
		gate:   gate,
		ledger: ledger,
		log:    log,
	}
}

// ProcessPassageEvent bills one camera-reported passage. The event is
// persisted with its billing outcome regardless of whether the charge
// succeeded; a suppressed passage never touches the ledger.
func (s *TollService) ProcessPassageEvent(ctx context.Context, payload *toll.PassageEventPayload) (*toll.BillingEvent, error) {
	if payload.Plate == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	if payload.CameraID == "" {
		return nil, fmt.Errorf("%w: camera_id is required", ErrInvalidInput)
	}
	if payload.EventTime.IsZero() {
		payload.EventTime = time.Now()
	}

	normalized := utils.NormalizePlate(payload.Plate)
	if normalized == "" {
		return nil, fmt.Errorf("%w: plate cannot be empty after normalization", ErrInvalidInput)
	}

	event := &toll.BillingEvent{
		Plate:     normalized,
		EventTime: payload.EventTime,
	}

	if !s.gate.Allow(normalized, payload.EventTime) {
		event.Outcome = toll.OutcomeSuppressed
	} else {
		evidence := payload.SnapshotURL
		if evidence == "" {
			evidence = fmt.Sprintf("%s_%s", payload.CameraID, payload.EventTime.UTC().Format(time.RFC3339))
		}
		tx, err := s.ledger.Charge(ctx, normalized, "", evidence)
		if errors.Is(err, billing.ErrConcurrencyConflict) {
			tx, err = s.ledger.Charge(ctx, normalized, "", evidence)
		}
		outcome := billing.Outcome(err)
		if outcome == "" {
			s.log.Error().
				Err(err).
				Str("plate", normalized).
				Str("camera_id", payload.CameraID).
				Msg("failed to charge passage")
			return nil, fmt.Errorf("failed to charge passage: %w", err)
		}
		event.Outcome = outcome
		if tx != nil {
			event.VehicleType = tx.VehicleType
			event.Fee = tx.Fee
			event.NewBalance = tx.RemainingBalance
			event.TransactionID = tx.ID
		}
	}

	if err := s.store.SavePassageEvent(ctx, payload, event.Outcome); err != nil {
		// The charge already committed; losing the history row is not worth
		// failing the gate response over.
		s.log.Warn().
			Err(err).
			Str("plate", normalized).
			Str("camera_id", payload.CameraID).
			Msg("failed to save passage event")
	}

	s.log.Info().
		Str("plate", normalized).
		Str("raw_plate", payload.Plate).
		Str("camera_id", payload.CameraID).
		Str("outcome", string(event.Outcome)).
		Time("event_time", payload.EventTime).
		Msg("processed passage event")
	return event, nil
}

// RegisterAccount creates a prepaid account for a vehicle.
func (s *TollService) RegisterAccount(ctx context.Context, acct *toll.Account) (*toll.Account, error) {
	if acct.OwnerName == "" {
		return nil, fmt.Errorf("%w: owner_name is required", ErrInvalidInput)
	}
	if utils.NormalizePlate(acct.Plate) == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	if _, err := billing.RateFor(acct.VehicleType); err != nil {
		return nil, fmt.Errorf("%w: unknown vehicle type %q", ErrInvalidInput, acct.VehicleType)
	}
	if acct.Balance.IsNegative() {
		return nil, fmt.Errorf("%w: balance cannot be negative", ErrInvalidInput)
	}

	if err := s.store.CreateAccount(ctx, acct); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.log.Info().
		Int64("account_id", acct.ID).
		Str("plate", acct.Plate).
		Str("vehicle_type", string(acct.VehicleType)).
		Str("balance", acct.Balance.String()).
		Msg("registered account")
	return acct, nil
}

// TopUp adds funds to an existing account.
func (s *TollService) TopUp(ctx context.Context, plate string, amount decimal.Decimal) (*toll.Account, error) {
	if utils.NormalizePlate(plate) == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	acct, err := s.store.TopUp(ctx, plate, amount)
	if errors.Is(err, billing.ErrUnregisteredVehicle) {
		return nil, fmt.Errorf("%w: account for plate %q", ErrNotFound, utils.NormalizePlate(plate))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to top up: %w", err)
	}

	s.log.Info().
		Str("plate", acct.Plate).
		Str("amount", amount.String()).
		Str("balance", acct.Balance.String()).
		Msg("account topped up")
	return acct, nil
}

// GetAccount resolves an account by plate.
func (s *TollService) GetAccount(ctx context.Context, plate string) (*toll.Account, error) {
	normalized := utils.NormalizePlate(plate)
	if normalized == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}

	acct, err := s.store.FindByPlate(ctx, normalized)
	if errors.Is(err, billing.ErrUnregisteredVehicle) {
		return nil, fmt.Errorf("%w: account for plate %q", ErrNotFound, normalized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return acct, nil
}

// ListTransactions returns charge records, newest first.
func (s *TollService) ListTransactions(ctx context.Context, plateQuery *string, limit, offset int) ([]toll.Transaction, error) {
	var plate *string
	if plateQuery != nil {
		normalized := utils.NormalizePlate(*plateQuery)
		if normalized != "" {
			plate = &normalized
		}
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	txs, err := s.store.ListTransactions(ctx, plate, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}
