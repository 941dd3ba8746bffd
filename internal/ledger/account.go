package ledger

import (
	"fmt"
	"sync"

	"github.com/mae-kelly/stay-fly/internal/domain"
)

// CapitalAccount tracks available cash. Cash never goes negative: a debit
// that exceeds the balance is a ledger inconsistency and is refused.
type CapitalAccount struct {
	mu       sync.Mutex
	cash     float64
	starting float64
}

func NewCapitalAccount(startingUSD float64) *CapitalAccount {
	return &CapitalAccount{cash: startingUSD, starting: startingUSD}
}

// Cash returns the current available balance.
func (a *CapitalAccount) Cash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// Starting returns the initial balance the account was funded with.
func (a *CapitalAccount) Starting() float64 { return a.starting }

// Debit removes amount from the balance. An amount exceeding the balance
// is refused so the cash invariant holds.
func (a *CapitalAccount) Debit(amount float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if amount <= 0 {
		return domain.NewFault(domain.FaultLedger,
			fmt.Sprintf("non-positive debit %.2f", amount), nil)
	}
	if amount > a.cash {
		return domain.NewFault(domain.FaultLedger,
			fmt.Sprintf("debit %.2f exceeds cash %.2f", amount, a.cash), nil)
	}
	a.cash -= amount
	return nil
}

// Credit adds amount to the balance.
func (a *CapitalAccount) Credit(amount float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if amount < 0 {
		return domain.NewFault(domain.FaultLedger,
			fmt.Sprintf("negative credit %.2f", amount), nil)
	}
	a.cash += amount
	return nil
}
