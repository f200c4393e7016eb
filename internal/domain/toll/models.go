package toll

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VehicleType is the registered class of a vehicle, used to resolve the toll fee.
type VehicleType string

const (
	VehicleBike  VehicleType = "Bike"
	VehicleCar   VehicleType = "Car"
	VehicleLarge VehicleType = "Large"
)

// Box is an axis-aligned bounding box in pixel space, x1 < x2 and y1 < y2.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b Box) Width() float64  { return b.X2 - b.X1 }
func (b Box) Height() float64 { return b.Y2 - b.Y1 }
func (b Box) Area() float64   { return b.Width() * b.Height() }

// Valid reports whether the box has positive extent in both axes.
func (b Box) Valid() bool { return b.X2 > b.X1 && b.Y2 > b.Y1 }

// Detection is a single plate candidate produced by the object detector for
// one frame. It is consumed by the associator and never stored.
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// PlateReading is one raw OCR candidate for a plate crop.
type PlateReading struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// BillingOutcome classifies the result of one billing attempt.
type BillingOutcome string

const (
	OutcomeCharged             BillingOutcome = "charged"
	OutcomeInsufficientBalance BillingOutcome = "insufficient_balance"
	OutcomeUnregistered        BillingOutcome = "unregistered"
	OutcomeUnknownVehicleType  BillingOutcome = "unknown_vehicle_type"
	OutcomeSuppressed          BillingOutcome = "suppressed"
)

// BillingEvent is emitted for every billing attempt that reaches the gate.
type BillingEvent struct {
	Plate         string          `json:"plate"`
	Outcome       BillingOutcome  `json:"outcome"`
	VehicleType   VehicleType     `json:"vehicle_type,omitempty"`
	Fee           decimal.Decimal `json:"fee"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	TransactionID uuid.UUID       `json:"transaction_id,omitempty"`
	EventTime     time.Time       `json:"event_time"`
}

// TrackSnapshot is the per-frame annotated view of one confirmed track.
type TrackSnapshot struct {
	TrackID    int64         `json:"track_id"`
	Box        Box           `json:"box"`
	Plate      string        `json:"plate,omitempty"`
	Confidence float64       `json:"confidence"`
	Billing    *BillingEvent `json:"billing,omitempty"`
}

// FrameResult is everything one processed frame produced.
type FrameResult struct {
	FrameIndex int             `json:"frame_index"`
	Tracks     []TrackSnapshot `json:"tracks"`
	Events     []BillingEvent  `json:"events,omitempty"`
}

// Account is a registered vehicle owner. Balance is mutated only by the ledger
// under a per-account lock.
type Account struct {
	ID          int64           `json:"id"`
	OwnerName   string          `json:"owner_name"`
	Phone       string          `json:"phone,omitempty"`
	Plate       string          `json:"plate"`
	VehicleType VehicleType     `json:"vehicle_type"`
	Balance     decimal.Decimal `json:"balance"`
}

// Transaction is the immutable record of one successful charge. RemainingBalance
// snapshots the account balance immediately after the deduction.
type Transaction struct {
	ID               uuid.UUID       `json:"id"`
	AccountID        int64           `json:"account_id"`
	Plate            string          `json:"plate"`
	VehicleType      VehicleType     `json:"vehicle_type"`
	Fee              decimal.Decimal `json:"fee"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Evidence         string          `json:"evidence,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// PassageEventPayload is a camera-originated passage event as received on the
// ingest endpoint. The plate text is raw and is validated before billing.
type PassageEventPayload struct {
	CameraID    string                 `json:"camera_id"`
	Plate       string                 `json:"plate"`
	Confidence  float64                `json:"confidence"`
	Direction   string                 `json:"direction,omitempty"`
	Lane        int                    `json:"lane,omitempty"`
	EventTime   time.Time              `json:"event_time"`
	SnapshotURL string                 `json:"snapshot_url,omitempty"`
	RawPayload  map[string]interface{} `json:"raw_payload,omitempty"`
}
