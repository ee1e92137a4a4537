package convert

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Unit is a named power of ten of the smallest denomination (atto).
type Unit struct {
	Name     string
	Exponent int32
}

var (
	Atto  = Unit{"atto", 0}
	Femto = Unit{"femto", 3}
	Pico  = Unit{"pico", 6}
	Nano  = Unit{"nano", 9}
	Micro = Unit{"micro", 12}
	Milli = Unit{"milli", 15}
	Tol   = Unit{"tol", 18}
	KTol  = Unit{"ktol", 21}
	MTol  = Unit{"mtol", 24}
	GTol  = Unit{"gtol", 27}
)

var unitsByName = map[string]Unit{
	"atto": Atto, "wei": Atto,
	"femto": Femto, "kwei": Femto,
	"pico": Pico, "mwei": Pico,
	"nano": Nano, "gwei": Nano,
	"micro": Micro, "szabo": Micro,
	"milli": Milli, "finney": Milli,
	"tol": Tol, "ether": Tol,
	"ktol": KTol, "kether": KTol,
	"mtol": MTol, "mether": MTol,
	"gtol": GTol, "gether": GTol,
}

// ParseUnit looks a unit up by name, case-insensitively.
func ParseUnit(name string) (Unit, error) {
	unit, ok := unitsByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Unit{}, errors.Errorf("unknown unit %q", name)
	}

	return unit, nil
}

func (u Unit) String() string {
	return u.Name
}

// ToAtto converts value in unit to an integral atto amount. Values that
// do not land on a whole atto are rejected.
func ToAtto(value decimal.Decimal, unit Unit) (*big.Int, error) {
	atto := value.Shift(unit.Exponent)
	if !atto.IsInteger() {
		return nil, errors.Errorf("non decimal value: %s %s = %s atto", value, unit, atto)
	}

	if atto.Sign() < 0 {
		return nil, errors.Errorf("negative value: %s %s", value, unit)
	}

	return atto.BigInt(), nil
}

// ParseAmount parses a decimal string in unit into atto.
func ParseAmount(value string, unit Unit) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse amount %q", value)
	}

	return ToAtto(d, unit)
}

// FromAtto converts an atto amount to unit.
func FromAtto(atto *big.Int, unit Unit) decimal.Decimal {
	if atto == nil {
		return decimal.Zero
	}

	return decimal.NewFromBigInt(atto, -unit.Exponent)
}
