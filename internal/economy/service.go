// Package economy runs multi-step money movements as all-or-nothing units.
//
// Every operation validates first, then mutates under the account lock of each
// account it touches. When a later step fails, the steps that already
// committed are reversed in order before the error is returned.
package economy

import (
	"context"
	"errors"
	"fmt"

	"coin_economy/internal/coins"
	"coin_economy/internal/domain"
	"coin_economy/internal/inventory"
	"coin_economy/internal/ledger"
	"coin_economy/internal/lock"

	"github.com/sirupsen/logrus"
)

// Service is the transaction orchestrator
type Service struct {
	ledger *ledger.Ledger
	coins  *coins.Reconciler
	locker lock.Locker
	log    *logrus.Entry
}

// New wires the orchestrator; a nil locker serializes in-process only
func New(l *ledger.Ledger, r *coins.Reconciler, locker lock.Locker, log *logrus.Entry) *Service {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if log == nil {
		log = logrus.WithField("component", "economy")
	}
	return &Service{ledger: l, coins: r, locker: locker, log: log}
}

// Reconciler exposes the coin reconciler used for physical coins
func (s *Service) Reconciler() *coins.Reconciler { return s.coins }

// Balance reads an account balance
func (s *Service) Balance(ctx context.Context, account string) (int64, error) {
	return s.ledger.GetBalance(ctx, account)
}

// History reads an account history, most recent first
func (s *Service) History(ctx context.Context, account string) ([]domain.HistoryEntry, error) {
	return s.ledger.GetHistory(ctx, account)
}

// Pay moves amount from sender to recipient
func (s *Service) Pay(ctx context.Context, sender, recipient string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amount)
	}
	if sender == recipient {
		return domain.ErrSameAccount
	}

	return s.locker.WithLock(ctx, lock.AccountKeys(sender, recipient), func(ctx context.Context) error {
		if err := s.requireFunds(ctx, sender, amount); err != nil {
			return err
		}
		if err := s.requireRoom(ctx, recipient, amount); err != nil {
			return err
		}

		var undo compensation
		if err := s.debit(ctx, sender, amount); err != nil {
			return err
		}
		undo.push("refund sender", func(ctx context.Context) error { return s.ledger.AddBalance(ctx, sender, amount) })

		if err := s.ledger.AddBalance(ctx, recipient, amount); err != nil {
			s.rollback(ctx, &undo, err, logrus.Fields{"sender": sender, "recipient": recipient, "amount": amount})
			return err
		}

		s.record(ctx, sender, domain.KindPaySent, amount, recipient, "")
		s.record(ctx, recipient, domain.KindPayReceived, amount, sender, "")
		s.log.WithFields(logrus.Fields{"sender": sender, "recipient": recipient, "amount": amount}).Info("Payment completed")
		return nil
	})
}

// Withdraw debits amount and hands it out as coins into inv. With denom set
// only that denomination is used; otherwise the fewest coins are used.
func (s *Service) Withdraw(ctx context.Context, account string, inv inventory.Inventory, amount int64, denom *domain.Denomination) (coins.Breakdown, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amount)
	}
	var plan coins.Breakdown
	err := s.locker.WithLock(ctx, lock.AccountKeys(account), func(ctx context.Context) error {
		if err := s.requireFunds(ctx, account, amount); err != nil {
			return err
		}
		var err error
		if plan, err = s.withdrawPlan(amount, denom); err != nil {
			return err
		}
		free, err := inventory.FreeSpace(ctx, inv, plan[0].Denomination.Tag)
		if err != nil {
			return fmt.Errorf("check room: %w", err)
		}
		if free >= 0 && free < plan.Coins() {
			return fmt.Errorf("%w: no room for %d coins", domain.ErrInventoryFull, plan.Coins())
		}
		before, err := s.coins.Snapshot(ctx, inv)
		if err != nil {
			return err
		}

		// Debit before the physical grant
		if err := s.debit(ctx, account, amount); err != nil {
			return err
		}

		if denom != nil {
			_, err = s.coins.GiveSpecific(ctx, inv, amount, plan[0].Denomination)
		} else {
			err = s.coins.GiveDenominated(ctx, inv, amount)
		}
		if err != nil {
			fields := logrus.Fields{"account_id": account, "amount": amount}
			// Coins that cannot be reclaimed stay with the player, so the debit stands
			if rerr := s.restoreCoins(context.WithoutCancel(ctx), inv, before); rerr != nil {
				s.log.WithFields(fields).WithError(rerr).Error("Could not reclaim partially granted coins; keeping debit")
				return err
			}
			var undo compensation
			undo.push("refund account", func(ctx context.Context) error { return s.ledger.AddBalance(ctx, account, amount) })
			s.rollback(ctx, &undo, err, fields)
			return err
		}

		s.record(ctx, account, domain.KindWithdraw, amount, "", planNote(plan))
		s.log.WithFields(logrus.Fields{"account_id": account, "amount": amount, "coins": plan.Coins()}).Info("Withdrawal completed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// Deposit takes coins out of inv and credits them. A nil amount deposits
// everything counted; otherwise exactly amount is taken as exact change.
// It returns the credited amount.
func (s *Service) Deposit(ctx context.Context, account string, inv inventory.Inventory, amount *int64) (int64, error) {
	if amount != nil && *amount <= 0 {
		return 0, fmt.Errorf("%w: %d", domain.ErrInvalidAmount, *amount)
	}

	var credited int64
	err := s.locker.WithLock(ctx, lock.AccountKeys(account), func(ctx context.Context) error {
		before, err := s.coins.Snapshot(ctx, inv)
		if err != nil {
			return err
		}
		tally := s.coins.CountInventory(before)

		if tally.Overflow && amount == nil {
			return fmt.Errorf("%w: purse value exceeds the balance range", domain.ErrBalanceOverflow)
		}
		target := tally.Total
		if amount != nil {
			target = *amount
			if tally.Total < target {
				return &domain.CoinsError{Counted: tally.Total, Required: target}
			}
			if !s.coins.CanPayExact(before, target) {
				return fmt.Errorf("%w: %d", domain.ErrNotExactChange, target)
			}
		}
		if target == 0 {
			return &domain.CoinsError{Counted: 0, Required: 0}
		}
		if err := s.requireRoom(ctx, account, target); err != nil {
			return err
		}

		// Remove coins before crediting
		ok, err := s.coins.RemoveExact(ctx, inv, target)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %d", domain.ErrNotExactChange, target)
		}

		if err := s.ledger.AddBalance(ctx, account, target); err != nil {
			var undo compensation
			undo.push("return coins", func(ctx context.Context) error { return s.restoreCoins(ctx, inv, before) })
			s.rollback(ctx, &undo, err, logrus.Fields{"account_id": account, "amount": target})
			return err
		}

		credited = target
		s.record(ctx, account, domain.KindDeposit, target, "", "")
		s.log.WithFields(logrus.Fields{"account_id": account, "amount": target}).Info("Deposit completed")
		return nil
	})
	return credited, err
}

// ShopSettle trades once with shop on behalf of trader. For a BUY shop the
// trader pays and receives goods from stock; for a SELL shop the owner pays
// and receives the trader's goods into stock.
func (s *Service) ShopSettle(ctx context.Context, trader string, shop domain.Shop, traderInv, stock inventory.Inventory) error {
	if shop.Price <= 0 {
		return fmt.Errorf("%w: price %d", domain.ErrInvalidAmount, shop.Price)
	}
	if shop.Quantity <= 0 {
		return fmt.Errorf("%w: quantity %d", domain.ErrInvalidAmount, shop.Quantity)
	}
	if trader == shop.OwnerID {
		return domain.ErrSameAccount
	}
	if err := ValidateTemplate(shop.Template); err != nil {
		s.log.WithFields(logrus.Fields{"shop_id": shop.ID, "location": shop.Location}).WithError(err).Warn("Ignoring malformed shop template")
	}

	return s.locker.WithLock(ctx, lock.AccountKeys(trader, shop.OwnerID), func(ctx context.Context) error {
		switch shop.Mode {
		case domain.ShopBuy:
			return s.settle(ctx, shop, trade{
				payer: trader, payee: shop.OwnerID,
				from: stock, to: traderInv,
			})
		case domain.ShopSell:
			return s.settle(ctx, shop, trade{
				payer: shop.OwnerID, payee: trader,
				from: traderInv, to: stock,
			})
		default:
			return fmt.Errorf("unknown shop mode %q", shop.Mode)
		}
	})
}

// trade is one settle direction: goods move from -> to, money payer -> payee
type trade struct {
	payer, payee string
	from, to     inventory.Inventory
}

// settle runs a trade; caller holds both account locks
func (s *Service) settle(ctx context.Context, shop domain.Shop, t trade) error {
	fields := logrus.Fields{"shop_id": shop.ID, "mode": shop.Mode, "payer": t.payer, "payee": t.payee, "price": shop.Price}

	if err := s.requireFunds(ctx, t.payer, shop.Price); err != nil {
		return err
	}
	held, err := t.from.CountUnitsOf(ctx, shop.ItemID)
	if err != nil {
		return fmt.Errorf("count goods: %w", err)
	}
	if held < shop.Quantity {
		return fmt.Errorf("%w: %d of %s held, %d needed", domain.ErrOutOfStock, held, shop.ItemID, shop.Quantity)
	}
	room, err := inventory.HasRoom(ctx, t.to, shop.ItemID, shop.Quantity)
	if err != nil {
		return fmt.Errorf("check room: %w", err)
	}
	if !room {
		return fmt.Errorf("%w: no room for %d of %s", domain.ErrInventoryFull, shop.Quantity, shop.ItemID)
	}
	if err := s.requireRoom(ctx, t.payee, shop.Price); err != nil {
		return err
	}

	var undo compensation
	if err := t.from.RemoveUnits(ctx, shop.ItemID, shop.Quantity); err != nil {
		return fmt.Errorf("take goods: %w", err)
	}
	undo.push("return goods", func(ctx context.Context) error {
		return t.from.DepositUnits(ctx, shop.ItemID, shop.Quantity)
	})

	if err := s.debit(ctx, t.payer, shop.Price); err != nil {
		s.rollback(ctx, &undo, err, fields)
		return err
	}
	undo.push("refund payer", func(ctx context.Context) error { return s.ledger.AddBalance(ctx, t.payer, shop.Price) })

	if err := s.ledger.AddBalance(ctx, t.payee, shop.Price); err != nil {
		s.rollback(ctx, &undo, err, fields)
		return err
	}
	undo.push("charge payee back", func(ctx context.Context) error { return s.debit(ctx, t.payee, shop.Price) })

	if err := t.to.DepositUnits(ctx, shop.ItemID, shop.Quantity); err != nil {
		err = fmt.Errorf("give goods: %w", err)
		s.rollback(ctx, &undo, err, fields)
		return err
	}

	note := fmt.Sprintf("%d × %s", shop.Quantity, shop.ItemID)
	buyer, seller := t.payer, t.payee
	s.record(ctx, buyer, domain.KindShopBuy, shop.Price, seller, note)
	s.record(ctx, seller, domain.KindShopSell, shop.Price, buyer, note)
	s.log.WithFields(fields).Info("Shop trade settled")
	return nil
}

// AdminSet replaces an account balance
func (s *Service) AdminSet(ctx context.Context, account string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amount)
	}
	return s.locker.WithLock(ctx, lock.AccountKeys(account), func(ctx context.Context) error {
		if err := s.ledger.SetBalance(ctx, account, amount); err != nil {
			return err
		}
		// A zero amount has no history entry
		if amount > 0 {
			s.record(ctx, account, domain.KindAdminSet, amount, "", "")
		}
		s.log.WithFields(logrus.Fields{"account_id": account, "amount": amount}).Info("Balance set by admin")
		return nil
	})
}

// AdminAdd credits an account
func (s *Service) AdminAdd(ctx context.Context, account string, amount int64) error {
	return s.Credit(ctx, account, amount, domain.KindAdminAdd, "", "")
}

// AdminSubtract debits an account, failing when the balance is too low
func (s *Service) AdminSubtract(ctx context.Context, account string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amount)
	}
	return s.locker.WithLock(ctx, lock.AccountKeys(account), func(ctx context.Context) error {
		if err := s.debit(ctx, account, amount); err != nil {
			return err
		}
		s.record(ctx, account, domain.KindAdminSubtract, amount, "", "")
		s.log.WithFields(logrus.Fields{"account_id": account, "amount": amount}).Info("Balance subtracted by admin")
		return nil
	})
}

// Credit adds amount to an account and records it under kind
func (s *Service) Credit(ctx context.Context, account string, amount int64, kind domain.HistoryKind, counterparty, note string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidAmount, amount)
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidKind, kind)
	}
	return s.locker.WithLock(ctx, lock.AccountKeys(account), func(ctx context.Context) error {
		if err := s.ledger.AddBalance(ctx, account, amount); err != nil {
			return err
		}
		s.record(ctx, account, kind, amount, counterparty, note)
		s.log.WithFields(logrus.Fields{"account_id": account, "amount": amount, "kind": kind}).Info("Account credited")
		return nil
	})
}

// ResetAccount wipes an account's balance and history
func (s *Service) ResetAccount(ctx context.Context, account string) error {
	return s.locker.WithLock(ctx, lock.AccountKeys(account), func(ctx context.Context) error {
		return s.ledger.ResetAccount(ctx, account)
	})
}

// requireFunds fails with a FundsError when account cannot pay amount
func (s *Service) requireFunds(ctx context.Context, account string, amount int64) error {
	bal, err := s.ledger.GetBalance(ctx, account)
	if err != nil {
		return err
	}
	if bal < amount {
		s.log.WithFields(logrus.Fields{"account_id": account, "balance": bal, "required": amount}).Debug("Rejected: insufficient funds")
		return &domain.FundsError{AccountID: account, Balance: bal, Required: amount}
	}
	return nil
}

// requireRoom fails when crediting amount would overflow the balance
func (s *Service) requireRoom(ctx context.Context, account string, amount int64) error {
	ok, err := s.ledger.CanAdd(ctx, account, amount)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: crediting %d to %s", domain.ErrBalanceOverflow, amount, account)
	}
	return nil
}

// debit removes amount, turning a refused removal into a FundsError
func (s *Service) debit(ctx context.Context, account string, amount int64) error {
	ok, err := s.ledger.RemoveBalance(ctx, account, amount)
	if err != nil {
		return err
	}
	if !ok {
		bal, err := s.ledger.GetBalance(ctx, account)
		if err != nil {
			return err
		}
		return &domain.FundsError{AccountID: account, Balance: bal, Required: amount}
	}
	return nil
}

// withdrawPlan decides the coins a withdrawal hands out
func (s *Service) withdrawPlan(amount int64, denom *domain.Denomination) (coins.Breakdown, error) {
	if denom != nil {
		d, ok := s.coins.Catalog().ByTag(denom.Tag)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownDenomination, denom.Tag)
		}
		if amount%d.Value != 0 {
			return nil, fmt.Errorf("%w: %d by %d", domain.ErrNotDivisible, amount, d.Value)
		}
		return coins.Breakdown{{Denomination: d, Count: amount / d.Value}}, nil
	}
	plan := s.coins.DecomposeGreedy(amount)
	if plan.Total() != amount {
		return nil, fmt.Errorf("%w: %d cannot be made from the catalog", domain.ErrNotDivisible, amount)
	}
	return plan, nil
}

// restoreCoins brings every catalog denomination in inv back to the counts in want
func (s *Service) restoreCoins(ctx context.Context, inv inventory.Inventory, want coins.Multiset) error {
	now, err := s.coins.Snapshot(ctx, inv)
	if err != nil {
		return err
	}
	var errs []error
	for _, d := range s.coins.Catalog().Denominations() {
		diff := want[d.Tag] - now[d.Tag]
		switch {
		case diff > 0:
			errs = append(errs, inv.DepositUnits(ctx, d.Tag, diff))
		case diff < 0:
			errs = append(errs, inv.RemoveUnits(ctx, d.Tag, -diff))
		}
	}
	return errors.Join(errs...)
}

// record writes history after a committed change. Failures are logged only:
// the balance is the source of truth and history is telemetry.
func (s *Service) record(ctx context.Context, account string, kind domain.HistoryKind, amount int64, counterparty, note string) {
	if err := s.ledger.RecordHistory(ctx, account, kind, amount, counterparty, note); err != nil {
		s.log.WithFields(logrus.Fields{
			"account_id": account,
			"kind":       kind,
			"amount":     amount,
		}).WithError(err).Error("Failed to record history")
	}
}

// rollback reverses committed steps after cause and logs what could not be undone
func (s *Service) rollback(ctx context.Context, undo *compensation, cause error, fields logrus.Fields) {
	failed := undo.run(context.WithoutCancel(ctx))
	if len(failed) == 0 {
		s.log.WithFields(fields).WithError(cause).Warn("Operation rolled back")
		return
	}
	for _, f := range failed {
		s.log.WithFields(fields).WithField("step", f.step).WithError(f.err).Error("Compensation failed")
	}
}

func planNote(plan coins.Breakdown) string {
	if len(plan) == 1 {
		return fmt.Sprintf("%d × %s", plan[0].Count, plan[0].Denomination.Tag)
	}
	return fmt.Sprintf("%d coins", plan.Coins())
}
