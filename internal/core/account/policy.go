package account

import (
	"github.com/rschio/bank/internal/core/money"
	"github.com/shopspring/decimal"
)

var (
	savingsRate      = decimal.RequireFromString("1.2")
	savingsSurcharge = decimal.RequireFromString("1.02")

	creditRate     = decimal.RequireFromString("0.5")
	creditDebtRate = decimal.RequireFromString("7")
)

// CreditLimit is the most negative balance a credit account may reach.
var CreditLimit = money.New(5000)

// The first savings withdrawal is free, every later one costs 2% on top.
var savingsPolicy = policy{
	rate: func(money.Money) decimal.Decimal { return savingsRate },
	charge: func(a *Account, amount money.Money) (money.Money, error) {
		if amount.Cmp(a.balance) > 0 {
			return money.Zero, ErrDenied
		}
		if !a.feeFreeUsed {
			return amount, nil
		}

		debit := amount.Mul(savingsSurcharge)
		if debit.Cmp(a.balance) > 0 {
			return money.Zero, ErrDenied
		}
		return debit, nil
	},
	charged: func(a *Account) { a.feeFreeUsed = true },
}

var creditPolicy = policy{
	rate: func(balance money.Money) decimal.Decimal {
		if balance.IsNegative() {
			return creditDebtRate
		}
		return creditRate
	},
	charge: func(a *Account, amount money.Money) (money.Money, error) {
		if a.balance.Sub(amount).Cmp(CreditLimit.Neg()) < 0 {
			return money.Zero, ErrDenied
		}
		return amount, nil
	},
}
