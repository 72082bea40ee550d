package matching

import (
	"time"

	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/domain/statement"
)

// Rule is one matching heuristic. Rules are evaluated in ascending Priority
// order; the first rule satisfied by any candidate wins, and candidates
// satisfying that rule are ranked by Confidence.
type Rule interface {
	Name() string
	Priority() int
	AutoApprove() bool
	Matches(report *settlement.Report, stmt *statement.Statement) bool
	Confidence(report *settlement.Report, stmt *statement.Statement) float64
}

// dateDistanceDays returns the absolute whole-day distance between two dates
func dateDistanceDays(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(ad.Sub(bd).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}

// ExactNettSameDay matches a statement credit equal to the settlement's nett
// amount on the same transaction date. The strongest signal available, so it
// carries full confidence.
type ExactNettSameDay struct{}

func (ExactNettSameDay) Name() string      { return "exact-nett-same-day" }
func (ExactNettSameDay) Priority() int     { return 10 }
func (ExactNettSameDay) AutoApprove() bool { return true }

func (ExactNettSameDay) Matches(report *settlement.Report, stmt *statement.Statement) bool {
	return stmt.CreditAmount == report.NettAmount &&
		dateDistanceDays(report.TransactionDate, stmt.TransactionDate) == 0
}

func (ExactNettSameDay) Confidence(*settlement.Report, *statement.Statement) float64 {
	return 1.0
}

// ExactNettWithinWindow matches an exact nett credit that landed up to
// windowDays after the settlement date. Banks settle platform payouts with a
// lag of a few days, so confidence decays with the distance.
type ExactNettWithinWindow struct {
	WindowDays int
}

func (ExactNettWithinWindow) Name() string      { return "exact-nett-within-window" }
func (ExactNettWithinWindow) Priority() int     { return 20 }
func (ExactNettWithinWindow) AutoApprove() bool { return true }

func (r ExactNettWithinWindow) Matches(report *settlement.Report, stmt *statement.Statement) bool {
	if stmt.CreditAmount != report.NettAmount {
		return false
	}
	d := dateDistanceDays(report.TransactionDate, stmt.TransactionDate)
	return d > 0 && d <= r.WindowDays
}

func (r ExactNettWithinWindow) Confidence(report *settlement.Report, stmt *statement.Statement) float64 {
	d := dateDistanceDays(report.TransactionDate, stmt.TransactionDate)
	c := 0.98 - 0.02*float64(d)
	if c < 0.8 {
		c = 0.8
	}
	return c
}

// NearNettWithinWindow matches a credit within AmountTolerance of the nett
// amount inside the window. Partial payouts and bank charges land here; it
// never auto-approves.
type NearNettWithinWindow struct {
	WindowDays      int
	AmountTolerance int64
}

func (NearNettWithinWindow) Name() string      { return "near-nett-within-window" }
func (NearNettWithinWindow) Priority() int     { return 30 }
func (NearNettWithinWindow) AutoApprove() bool { return false }

func (r NearNettWithinWindow) Matches(report *settlement.Report, stmt *statement.Statement) bool {
	diff := stmt.CreditAmount - report.NettAmount
	if diff < 0 {
		diff = -diff
	}
	if diff == 0 || diff > r.AmountTolerance {
		return false
	}
	return dateDistanceDays(report.TransactionDate, stmt.TransactionDate) <= r.WindowDays
}

func (r NearNettWithinWindow) Confidence(report *settlement.Report, stmt *statement.Statement) float64 {
	diff := stmt.CreditAmount - report.NettAmount
	if diff < 0 {
		diff = -diff
	}
	// Closeness of the amount dominates; date distance trims the rest.
	c := 0.7 - 0.2*float64(diff)/float64(r.AmountTolerance)
	c -= 0.02 * float64(dateDistanceDays(report.TransactionDate, stmt.TransactionDate))
	if c < 0.4 {
		c = 0.4
	}
	return c
}

// DefaultRules is the production rule set ordered by priority
func DefaultRules(windowDays int, amountTolerance int64) []Rule {
	return []Rule{
		ExactNettSameDay{},
		ExactNettWithinWindow{WindowDays: windowDays},
		NearNettWithinWindow{WindowDays: windowDays, AmountTolerance: amountTolerance},
	}
}
