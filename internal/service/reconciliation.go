package service

import (
	"context"
	"fmt"

	"github.com/hanapgigs/escrow-engine/internal/observability"
	"go.uber.org/zap"
)

// ReconciliationService verifies settlement integrity invariants.
type ReconciliationService struct {
	store QueryStore
}

func NewReconciliationService(store QueryStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// ReconciliationReport summarizes one reconciliation run. All counts should
// be zero on a healthy system.
type ReconciliationReport struct {
	NegativeBalances  int64
	MultiAcceptedJobs int64
	ProjectImbalances int64
}

func (r ReconciliationReport) Clean() bool {
	return r.NegativeBalances == 0 && r.MultiAcceptedJobs == 0 && r.ProjectImbalances == 0
}

// Run checks every invariant and reports findings. Violations are logged and
// counted but never repaired automatically.
func (s *ReconciliationService) Run(ctx context.Context) (ReconciliationReport, error) {
	queries := s.store.Queries()
	var report ReconciliationReport

	negative, err := queries.CountNegativeBalances(ctx)
	if err != nil {
		return report, fmt.Errorf("count negative balances: %w", err)
	}
	report.NegativeBalances = negative
	if negative > 0 {
		observability.IncrementInvariantViolation("negative_balance")
		zap.L().Error("CRITICAL: negative account balances detected", zap.Int64("count", negative))
	}

	multiAccepted, err := queries.CountMultiAcceptedJobs(ctx)
	if err != nil {
		return report, fmt.Errorf("count multi-accepted jobs: %w", err)
	}
	report.MultiAcceptedJobs = multiAccepted
	if multiAccepted > 0 {
		observability.IncrementInvariantViolation("multi_accepted_job")
		zap.L().Error("CRITICAL: jobs with more than one accepted bid", zap.Int64("count", multiAccepted))
	}

	imbalances, err := queries.ListProjectImbalances(ctx)
	if err != nil {
		return report, fmt.Errorf("list project imbalances: %w", err)
	}
	report.ProjectImbalances = int64(len(imbalances))
	for _, row := range imbalances {
		observability.IncrementInvariantViolation("project_imbalance")
		zap.L().Error("project escrow imbalance",
			zap.String("project_id", row.ProjectID.String()),
			zap.Int64("agreed_centavos", row.AgreedCentavos),
			zap.Int64("escrow_in", row.EscrowIn),
			zap.Int64("paid_out", row.PaidOut))
	}

	if report.Clean() {
		zap.L().Info("escrow ledger balanced")
	}
	return report, nil
}
