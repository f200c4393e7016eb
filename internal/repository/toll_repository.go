package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tollgate-service/internal/billing"
	"tollgate-service/internal/domain/toll"
	"tollgate-service/internal/utils"
)

type TollRepository struct {
	db *gorm.DB
}

func NewTollRepository(db *gorm.DB) *TollRepository {
	return &TollRepository{db: db}
}

type Account struct {
	ID          int64           `gorm:"primaryKey"`
	OwnerName   string          `gorm:"not null"`
	Phone       *string         `gorm:"uniqueIndex"`
	Plate       string          `gorm:"not null;uniqueIndex"`
	VehicleType string          `gorm:"not null"`
	Balance     decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CreatedAt   time.Time
}

type Transaction struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID        int64     `gorm:"not null;index"`
	Plate            string    `gorm:"not null;index"`
	VehicleType      string    `gorm:"not null"`
	Fee              decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	RemainingBalance decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Evidence         *string
	CreatedAt        time.Time `gorm:"not null;index"`
}

type PassageEvent struct {
	ID          int64  `gorm:"primaryKey"`
	CameraID    string `gorm:"not null"`
	Plate       string `gorm:"not null;index"`
	Confidence  *float64
	Direction   *string
	Lane        *int
	Outcome     string
	SnapshotURL *string
	EventTime   time.Time         `gorm:"not null;index"`
	RawPayload  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time
}

// CreateAccount registers a vehicle owner; the plate is stored normalized.
func (r *TollRepository) CreateAccount(ctx context.Context, acct *toll.Account) error {
	row := Account{
		OwnerName:   acct.OwnerName,
		Plate:       utils.NormalizePlate(acct.Plate),
		VehicleType: string(acct.VehicleType),
		Balance:     acct.Balance,
		CreatedAt:   time.Now(),
	}
	if acct.Phone != "" {
		row.Phone = &acct.Phone
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	acct.ID = row.ID
	acct.Plate = row.Plate
	return nil
}

// FindByPlate resolves an account by canonical plate text.
func (r *TollRepository) FindByPlate(ctx context.Context, plate string) (*toll.Account, error) {
	var row Account
	err := r.db.WithContext(ctx).
		Where("plate = ?", utils.NormalizePlate(plate)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.ErrUnregisteredVehicle
	}
	if err != nil {
		return nil, err
	}
	return accountDomain(&row), nil
}

// TopUp adds funds to an account under a row lock and returns the new view.
func (r *TollRepository) TopUp(ctx context.Context, plate string, amount decimal.Decimal) (*toll.Account, error) {
	var out *toll.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Account
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("plate = ?", utils.NormalizePlate(plate)).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billing.ErrUnregisteredVehicle
		}
		if err != nil {
			return err
		}
		row.Balance = row.Balance.Add(amount)
		if err := tx.Model(&Account{}).Where("id = ?", row.ID).Update("balance", row.Balance).Error; err != nil {
			return err
		}
		out = accountDomain(&row)
		return nil
	})
	return out, err
}

// DebitAndRecord is the atomic charge protocol: the account row is locked
// (SELECT ... FOR UPDATE), the balance check, deduction and transaction
// insert commit or roll back as one unit.
func (r *TollRepository) DebitAndRecord(ctx context.Context, plate string, vt toll.VehicleType, fee decimal.Decimal, evidence string) (*toll.Transaction, error) {
	var out *toll.Transaction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acct Account
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("plate = ?", utils.NormalizePlate(plate)).
			First(&acct).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billing.ErrUnregisteredVehicle
		}
		if err != nil {
			return err
		}

		if acct.Balance.LessThan(fee) {
			return billing.ErrInsufficientBalance
		}

		acct.Balance = acct.Balance.Sub(fee)
		if err := tx.Model(&Account{}).Where("id = ?", acct.ID).Update("balance", acct.Balance).Error; err != nil {
			return err
		}

		rec := Transaction{
			ID:               uuid.New(),
			AccountID:        acct.ID,
			Plate:            acct.Plate,
			VehicleType:      string(vt),
			Fee:              fee,
			RemainingBalance: acct.Balance,
			CreatedAt:        time.Now(),
		}
		if evidence != "" {
			rec.Evidence = &evidence
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		out = transactionDomain(&rec)
		return nil
	})
	return out, err
}

// ListTransactions returns transactions newest first, optionally filtered by
// canonical plate.
func (r *TollRepository) ListTransactions(ctx context.Context, plate *string, limit, offset int) ([]toll.Transaction, error) {
	query := r.db.WithContext(ctx).Model(&Transaction{})
	if plate != nil {
		query = query.Where("plate = ?", utils.NormalizePlate(*plate))
	}
	query = query.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []Transaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]toll.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, *transactionDomain(&rows[i]))
	}
	return out, nil
}

// SavePassageEvent persists one camera passage event with its billing outcome.
func (r *TollRepository) SavePassageEvent(ctx context.Context, event *toll.PassageEventPayload, outcome toll.BillingOutcome) error {
	row := PassageEvent{
		CameraID:  event.CameraID,
		Plate:     utils.NormalizePlate(event.Plate),
		Outcome:   string(outcome),
		EventTime: event.EventTime,
		CreatedAt: time.Now(),
	}
	if event.Confidence != 0 {
		row.Confidence = &event.Confidence
	}
	if event.Direction != "" {
		row.Direction = &event.Direction
	}
	if event.Lane != 0 {
		row.Lane = &event.Lane
	}
	if event.SnapshotURL != "" {
		row.SnapshotURL = &event.SnapshotURL
	}
	if len(event.RawPayload) > 0 {
		row.RawPayload = datatypes.JSONMap(event.RawPayload)
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func accountDomain(row *Account) *toll.Account {
	acct := &toll.Account{
		ID:          row.ID,
		OwnerName:   row.OwnerName,
		Plate:       row.Plate,
		VehicleType: toll.VehicleType(row.VehicleType),
		Balance:     row.Balance,
	}
	if row.Phone != nil {
		acct.Phone = *row.Phone
	}
	return acct
}

func transactionDomain(row *Transaction) *toll.Transaction {
	tx := &toll.Transaction{
		ID:               row.ID,
		AccountID:        row.AccountID,
		Plate:            row.Plate,
		VehicleType:      toll.VehicleType(row.VehicleType),
		Fee:              row.Fee,
		RemainingBalance: row.RemainingBalance,
		CreatedAt:        row.CreatedAt,
	}
	if row.Evidence != nil {
		tx.Evidence = *row.Evidence
	}
	return tx
}
