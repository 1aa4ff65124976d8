package surety

import (
	"fmt"

	"flight_surety/internal/models"

	"github.com/shopspring/decimal"
)

// Params holds the fixed economic and consensus constants of a deployment
type Params struct {
	AirlineFee        decimal.Decimal // exact stake required to become Funded
	MaxInsurance      decimal.Decimal // cap on a single policy
	OracleFee         decimal.Decimal // exact oracle registration fee
	IndexBound        uint8           // oracle indexes are drawn from [0, IndexBound)
	MinResponses      int             // matching reports needed to settle a request
	BootstrapAirlines int             // below this many funded airlines, admission is unilateral
}

// DefaultParams returns the production constants
func DefaultParams() Params {
	return Params{
		AirlineFee:        models.MustEther("10"),
		MaxInsurance:      models.MustEther("1"),
		OracleFee:         models.MustEther("1"),
		IndexBound:        10,
		MinResponses:      3,
		BootstrapAirlines: 4,
	}
}

// Validate checks the params are usable
func (p Params) Validate() error {
	if !p.AirlineFee.IsPositive() {
		return fmt.Errorf("airline fee must be greater than 0")
	}
	if !p.MaxInsurance.IsPositive() {
		return fmt.Errorf("max insurance must be greater than 0")
	}
	if p.OracleFee.IsNegative() {
		return fmt.Errorf("oracle fee must not be negative")
	}
	// three distinct indexes per oracle
	if p.IndexBound < 3 {
		return fmt.Errorf("index bound must be at least 3, got %d", p.IndexBound)
	}
	if p.MinResponses <= 0 {
		return fmt.Errorf("min responses must be greater than 0")
	}
	if p.BootstrapAirlines <= 0 {
		return fmt.Errorf("bootstrap airlines must be greater than 0")
	}
	return nil
}
