package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by the ledger, the reconciler and the orchestrator.
// Every rejection happens before any state is mutated.
var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInsufficientCoins      = errors.New("insufficient coins")
	ErrNotExactChange         = errors.New("cannot pay with exact change")
	ErrNotDivisible           = errors.New("amount not divisible by denomination")
	ErrSameAccount            = errors.New("sender and recipient are the same account")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrOutOfStock             = errors.New("out of stock")
	ErrInventoryFull          = errors.New("inventory full")
	ErrInvalidKind            = errors.New("invalid history kind")
	ErrBalanceOverflow        = errors.New("balance overflow")
	ErrLedgerClosed           = errors.New("ledger is not open")
	ErrInvariantBroken        = errors.New("coin invariant broken")
	ErrShopNotFound           = errors.New("shop not found")
	ErrUnknownDenomination    = errors.New("unknown denomination")
)

// FundsError is returned when a debit exceeds the current balance
type FundsError struct {
	AccountID string // Account that could not pay
	Balance   int64  // Balance at the time of the check
	Required  int64  // Amount that was requested
}

func (e *FundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d, required %d", e.Balance, e.Required)
}

// Unwrap lets errors.Is match ErrInsufficientFunds
func (e *FundsError) Unwrap() error { return ErrInsufficientFunds }

// CoinsError is returned when a physical inventory holds less than requested
type CoinsError struct {
	Counted  int64 // Total value counted in the inventory
	Required int64 // Amount that was requested
}

func (e *CoinsError) Error() string {
	return fmt.Sprintf("insufficient coins: counted %d, required %d", e.Counted, e.Required)
}

// Unwrap lets errors.Is match ErrInsufficientCoins
func (e *CoinsError) Unwrap() error { return ErrInsufficientCoins }
