package host

import (
	"fmt"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/holiman/uint256"
)

const bankPrefix = "bank/"

type bank struct {
	balances AmountMap
}

func newBank() bank {
	return bank{balances: NewAmountMap("balances")}
}

func (b bank) store(s Store) Store {
	return PrefixStore(s, bankPrefix)
}

func (b bank) balance(s Store, addr, denom string) (*uint256.Int, error) {
	return b.balances.Get(b.store(s), JoinKey(addr, denom))
}

func (b bank) mint(s Store, to string, coins []wasmvmtypes.Coin) error {
	for _, c := range coins {
		amount, err := ParseAmount(c.Amount)
		if err != nil {
			return err
		}
		if err := b.balances.Add(b.store(s), JoinKey(to, c.Denom), amount); err != nil {
			return err
		}
	}
	return nil
}

func (b bank) send(s Store, from, to string, coins []wasmvmtypes.Coin) error {
	bs := b.store(s)
	for _, c := range coins {
		amount, err := ParseAmount(c.Amount)
		if err != nil {
			return err
		}
		if amount.IsZero() {
			continue
		}
		fromKey := JoinKey(from, c.Denom)
		balance, err := b.balances.Get(bs, fromKey)
		if err != nil {
			return err
		}
		if balance.Lt(amount) {
			return fmt.Errorf("%w: %s has %s%s, needs %s%s", ErrInsufficientBalance, from, balance.ToBig(), c.Denom, amount.ToBig(), c.Denom)
		}
		if err := b.balances.Set(bs, fromKey, new(uint256.Int).Sub(balance, amount)); err != nil {
			return err
		}
		if err := b.balances.Add(bs, JoinKey(to, c.Denom), amount); err != nil {
			return err
		}
	}
	return nil
}
