// Package matching pairs pending settlement reports with bank statement
// lines. Rules are evaluated as an ordered list; selection among candidates
// of the winning rule is fully deterministic so repeated runs over the same
// data produce the same result.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kulina-reconciliation/internal/domain/settlement"
	"github.com/kulina-reconciliation/internal/domain/shared"
	"github.com/kulina-reconciliation/internal/domain/statement"
)

// MatchResult records the winning candidate of one settlement match
type MatchResult struct {
	SettlementID uuid.UUID `json:"settlement_id"`
	StatementID  uuid.UUID `json:"statement_id"`
	RuleName     string    `json:"rule_name"`
	Confidence   float64   `json:"confidence"`
	AutoApproved bool      `json:"auto_approved"`
	MatchedAt    time.Time `json:"matched_at"`
}

// BankReconResult aggregates one matching pass over a settlement batch
type BankReconResult struct {
	Matched        int `json:"matched"`
	ReviewRequired int `json:"review_required"`
	Unmatched      int `json:"unmatched"`
}

// Engine drives rule-based settlement-to-statement matching
type Engine struct {
	logger                *slog.Logger
	rules                 []Rule
	settlements           settlement.Repository
	statements            statement.Repository
	windowDays            int
	autoApproveConfidence float64
}

// NewEngine creates a matching engine. Rules are sorted by ascending priority
// once here; evaluation order never changes afterwards.
func NewEngine(
	logger *slog.Logger,
	rules []Rule,
	settlements settlement.Repository,
	statements statement.Repository,
	windowDays int,
	autoApproveConfidence float64,
) *Engine {
	sorted := append([]Rule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Engine{
		logger:                logger,
		rules:                 sorted,
		settlements:           settlements,
		statements:            statements,
		windowDays:            windowDays,
		autoApproveConfidence: autoApproveConfidence,
	}
}

// candidate pairs a statement with its score under the winning rule
type candidate struct {
	stmt       *statement.Statement
	confidence float64
	distance   int
}

// Select evaluates the rule list against the candidate set and returns the
// winning statement with its result, or nil when no rule matches anything.
// Ties inside the winning rule break by confidence desc, then date distance
// asc, then statement id asc.
func (e *Engine) Select(report *settlement.Report, stmts []*statement.Statement) (*MatchResult, *statement.Statement) {
	for _, rule := range e.rules {
		var matched []candidate
		for _, stmt := range stmts {
			if stmt.IsClaimed() {
				continue
			}
			if rule.Matches(report, stmt) {
				matched = append(matched, candidate{
					stmt:       stmt,
					confidence: rule.Confidence(report, stmt),
					distance:   dateDistanceDays(report.TransactionDate, stmt.TransactionDate),
				})
			}
		}
		if len(matched) == 0 {
			continue
		}

		sort.Slice(matched, func(i, j int) bool {
			if matched[i].confidence != matched[j].confidence {
				return matched[i].confidence > matched[j].confidence
			}
			if matched[i].distance != matched[j].distance {
				return matched[i].distance < matched[j].distance
			}
			return matched[i].stmt.ID.String() < matched[j].stmt.ID.String()
		})

		best := matched[0]
		return &MatchResult{
			SettlementID: report.ID,
			StatementID:  best.stmt.ID,
			RuleName:     rule.Name(),
			Confidence:   best.confidence,
			AutoApproved: rule.AutoApprove() && best.confidence >= e.autoApproveConfidence,
			MatchedAt:    time.Now(),
		}, best.stmt
	}
	return nil, nil
}

// ReconcileSettlement runs one settlement through the rule set against the
// unreconciled statements in its date window. Auto-approved matches claim the
// statement; a lost claim race drops the candidate and re-selects. Matches
// below the confidence cutoff route the settlement to review without
// consuming the statement. No match at all leaves the settlement PENDING for
// a later cycle.
func (e *Engine) ReconcileSettlement(ctx context.Context, report *settlement.Report) (*MatchResult, error) {
	from := report.TransactionDate.AddDate(0, 0, -e.windowDays)
	to := report.TransactionDate.AddDate(0, 0, e.windowDays)

	candidates, err := e.statements.GetUnreconciledStatements(ctx, from, to, report.CompanyID)
	if err != nil {
		return nil, shared.NewMatchingEngineError("failed to load candidate statements", report.ID.String()).WithCause(err)
	}

	for {
		result, stmt := e.Select(report, candidates)
		if result == nil {
			e.logger.Debug("No candidate matched settlement",
				"settlement_id", report.ID.String(),
				"candidates", len(candidates))
			return nil, nil
		}

		if !result.AutoApproved {
			report.MarkBankReviewRequired()
			if err := e.settlements.UpdateReconciliationStatus(ctx, report); err != nil {
				return nil, fmt.Errorf("failed to persist review-required settlement: %w", err)
			}
			e.logger.Info("Settlement routed to match review",
				"settlement_id", report.ID.String(),
				"statement_id", result.StatementID.String(),
				"rule", result.RuleName,
				"confidence", result.Confidence)
			return result, nil
		}

		err := e.statements.Claim(ctx, stmt.ID, report.ID, "rule:"+result.RuleName)
		if err != nil {
			var claimed statement.ErrAlreadyClaimed
			if errors.As(err, &claimed) {
				e.logger.Debug("Lost claim race, re-selecting",
					"settlement_id", report.ID.String(),
					"statement_id", stmt.ID.String())
				candidates = removeStatement(candidates, stmt.ID)
				continue
			}
			return nil, fmt.Errorf("failed to claim statement: %w", err)
		}

		report.MarkBankMatched()
		if err := e.settlements.UpdateReconciliationStatus(ctx, report); err != nil {
			return nil, fmt.Errorf("failed to persist matched settlement: %w", err)
		}

		e.logger.Info("Settlement bank-matched",
			"settlement_id", report.ID.String(),
			"statement_id", stmt.ID.String(),
			"rule", result.RuleName,
			"confidence", result.Confidence)
		return result, nil
	}
}

func removeStatement(stmts []*statement.Statement, id uuid.UUID) []*statement.Statement {
	out := stmts[:0]
	for _, s := range stmts {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}
