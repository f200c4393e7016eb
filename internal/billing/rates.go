package billing

import (
	"github.com/shopspring/decimal"

	"tollgate-service/internal/domain/toll"
)

// rateTable is the fixed toll fee per vehicle type.
var rateTable = map[toll.VehicleType]decimal.Decimal{
	toll.VehicleBike:  decimal.NewFromInt(30),
	toll.VehicleCar:   decimal.NewFromInt(50),
	toll.VehicleLarge: decimal.NewFromInt(100),
}

// RateFor resolves the toll fee for a vehicle type.
func RateFor(vt toll.VehicleType) (decimal.Decimal, error) {
	fee, ok := rateTable[vt]
	if !ok {
		return decimal.Zero, ErrUnknownVehicleType
	}
	return fee, nil
}
