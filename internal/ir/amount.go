package ir

import (
	"bytes"
	"fmt"
	"math/big"
)

// Amount is a non-negative arbitrary precision quantity of the payment
// currency (wei-style base units). The zero value is 0.
//
// Amounts are immutable: every operation returns a new value and never
// aliases the receiver's big.Int.
type Amount struct {
	v *big.Int
}

// NewAmount returns an Amount holding n.
func NewAmount(n uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(n)}
}

// ParseAmount parses a base-10 non-negative integer.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("parse amount: empty string")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("parse amount %q: not a base-10 integer", s)
	}
	if v.Sign() < 0 {
		return Amount{}, fmt.Errorf("parse amount %q: negative", s)
	}
	return Amount{v: v}, nil
}

// MustParseAmount is ParseAmount that panics on error. Intended for tests
// and constants.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// Int returns a copy of the underlying integer.
func (a Amount) Int() *big.Int {
	return new(big.Int).Set(a.big())
}

// IsZero reports whether the amount is 0.
func (a Amount) IsZero() bool {
	return a.big().Sign() == 0
}

// Cmp compares a and b, returning -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.big().Cmp(b.big())
}

// Sub returns a-b, clamped at zero.
func (a Amount) Sub(b Amount) Amount {
	d := new(big.Int).Sub(a.big(), b.big())
	if d.Sign() < 0 {
		return Amount{}
	}
	return Amount{v: d}
}

// String renders the amount in base 10.
func (a Amount) String() string {
	return a.big().String()
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. YAML scalars decode
// through this path whether they are written quoted or bare.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the amount as a JSON string so values above 2^53
// survive JavaScript consumers.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	return a.UnmarshalText(data)
}
