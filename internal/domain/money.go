package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a PHP amount stored as int64 centavos (10^-2) to avoid floating
// point errors at rest. decimal is used only for rate math.
type Money struct {
	Centavos int64
}

// NewMoney creates a Money from centavos.
func NewMoney(centavos int64) Money {
	return Money{Centavos: centavos}
}

// ToDecimal converts centavos to a shopspring decimal in pesos.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Centavos).Div(decimal.NewFromInt(100))
}

// FromDecimal converts a peso decimal to centavos, truncating sub-centavo
// precision.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).IntPart()
}

func (m Money) String() string {
	return fmt.Sprintf("PHP %s", m.ToDecimal().StringFixed(2))
}

// FeeBreakdown is the platform's cut of an agreed amount.
type FeeBreakdown struct {
	AgreedCentavos int64 `json:"agreed_centavos"`
	FeeCentavos    int64 `json:"fee_centavos"`
	NetCentavos    int64 `json:"net_centavos"`
}

// ComputeFee splits an agreed amount into platform fee and worker net using
// the injected rate. The fee rounds down to whole centavos so the worker
// never loses a centavo to rounding.
func ComputeFee(agreedCentavos int64, feeRate decimal.Decimal) FeeBreakdown {
	fee := decimal.NewFromInt(agreedCentavos).Mul(feeRate).IntPart()
	return FeeBreakdown{
		AgreedCentavos: agreedCentavos,
		FeeCentavos:    fee,
		NetCentavos:    agreedCentavos - fee,
	}
}
