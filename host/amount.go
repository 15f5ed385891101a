package host

import (
	"fmt"
	"math/big"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/holiman/uint256"
)

// MaxAmountBits is the width of a token amount
const MaxAmountBits = 128

// ParseAmount parses a decimal 128 bit unsigned amount
func ParseAmount(s string) (*uint256.Int, error) {
	b, ok := new(big.Int).SetString(s, 10) //nolint:gomnd
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return ToAmount(b)
}

// ToAmount converts b, rejecting negative values and values wider than 128 bits
func ToAmount(b *big.Int) (*uint256.Int, error) {
	if b == nil {
		return new(uint256.Int), nil
	}
	if b.Sign() < 0 || b.BitLen() > MaxAmountBits {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, b.String())
	}
	u, _ := uint256.FromBig(b)
	return u, nil
}

// FundsOf sums the coins of the given denom
func FundsOf(funds []wasmvmtypes.Coin, denom string) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, c := range funds {
		if c.Denom != denom {
			continue
		}
		amount, err := ParseAmount(c.Amount)
		if err != nil {
			return nil, err
		}
		total.Add(total, amount)
	}
	if total.BitLen() > MaxAmountBits {
		return nil, fmt.Errorf("%w: overflow", ErrInvalidAmount)
	}
	return total, nil
}

// Coins returns amount of denom as a coin list, empty for a zero amount
func Coins(amount *uint256.Int, denom string) wasmvmtypes.Array[wasmvmtypes.Coin] {
	if amount == nil || amount.IsZero() {
		return wasmvmtypes.Array[wasmvmtypes.Coin]{}
	}
	return wasmvmtypes.Array[wasmvmtypes.Coin]{{Denom: denom, Amount: FormatAmount(amount)}}
}

// FormatAmount returns the decimal form of amount
func FormatAmount(amount *uint256.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.ToBig().String()
}
