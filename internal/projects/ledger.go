package projects

import (
	"math"
	"time"

	"github.com/google/uuid"

	"simflow/portal-backend/internal/workflow"
)

// Round keeps hours at two decimals so ledger sums stay exact enough to compare.
func Round(h float64) float64 {
	return math.Round(h*100) / 100
}

// LedgerEntry describes a ledger write before it is applied.
type LedgerEntry struct {
	RequestID *string
	Hours     float64
	ActorID   string
	Note      string
	At        time.Time
}

// Allocate draws hours from the project's budget and returns the ledger row.
// The project is mutated only on success.
func Allocate(p *Project, e LedgerEntry) (*HourTransaction, error) {
	hours := Round(e.Hours)
	if hours <= 0 {
		return nil, workflow.Invalid("hours", "allocation must be positive, got %v", e.Hours)
	}
	if err := checkBudget(p, hours); err != nil {
		return nil, err
	}
	return apply(p, TxAllocation, hours, e), nil
}

// Deallocate returns hours to the project's budget.
func Deallocate(p *Project, e LedgerEntry) (*HourTransaction, error) {
	hours := Round(e.Hours)
	if hours <= 0 {
		return nil, workflow.Invalid("hours", "deallocation must be positive, got %v", e.Hours)
	}
	if hours > Round(p.UsedHours) {
		hours = Round(p.UsedHours)
	}
	return apply(p, TxDeallocation, -hours, e), nil
}

// Adjust applies a signed delta. Only positive deltas are checked against
// the remaining budget.
func Adjust(p *Project, e LedgerEntry) (*HourTransaction, error) {
	delta := Round(e.Hours)
	if delta == 0 {
		return nil, workflow.Invalid("hours", "adjustment must be non-zero")
	}
	if delta > 0 {
		if err := checkBudget(p, delta); err != nil {
			return nil, err
		}
	}
	if Round(p.UsedHours+delta) < 0 {
		return nil, workflow.Invalid("hours", "adjustment of %v would make used hours negative", delta)
	}
	return apply(p, TxAdjustment, delta, e), nil
}

// Extend raises the project's total budget. Used hours are unchanged.
func Extend(p *Project, e LedgerEntry) (*HourTransaction, error) {
	hours := Round(e.Hours)
	if hours <= 0 {
		return nil, workflow.Invalid("hours", "extension must be positive, got %v", e.Hours)
	}
	tx := newTransaction(p, TxExtension, hours, e)
	p.TotalHours = Round(p.TotalHours + hours)
	tx.BalanceAfter = tx.BalanceBefore
	tx.TotalAfter = p.TotalHours
	return tx, nil
}

// UsedHoursFromLedger recomputes usedHours from ledger rows.
func UsedHoursFromLedger(txs []*HourTransaction) float64 {
	var used float64
	for _, tx := range txs {
		if tx.Type.CountsTowardsUsage() {
			used += tx.Hours
		}
	}
	return Round(used)
}

func checkBudget(p *Project, hours float64) error {
	available := p.RemainingHours()
	if hours > available {
		return &workflow.InsufficientBudgetError{Available: available, Requested: hours}
	}
	return nil
}

func apply(p *Project, typ TransactionType, delta float64, e LedgerEntry) *HourTransaction {
	tx := newTransaction(p, typ, delta, e)
	p.UsedHours = Round(p.UsedHours + delta)
	tx.BalanceAfter = p.UsedHours
	tx.TotalAfter = p.TotalHours
	return tx
}

func newTransaction(p *Project, typ TransactionType, delta float64, e LedgerEntry) *HourTransaction {
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &HourTransaction{
		ID:            uuid.NewString(),
		ProjectID:     p.ID,
		RequestID:     e.RequestID,
		Type:          typ,
		Hours:         delta,
		BalanceBefore: p.UsedHours,
		TotalBefore:   p.TotalHours,
		ActorID:       e.ActorID,
		Note:          e.Note,
		CreatedAt:     at,
	}
}
