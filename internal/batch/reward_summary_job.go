package batch

import (
	"context"
	"fmt"
	"log/slog"
	"loyalty-tracker/internal/domain/customer"
	"loyalty-tracker/internal/infrastructure/monitoring"
	"time"

	"github.com/shopspring/decimal"
)

type RewardSummary struct {
	Customers       int
	CustomersAtGoal int
	TotalSpentCents decimal.Decimal
}

type RewardSummaryJob struct {
	customerService customer.CustomerService
	logger          *slog.Logger
	now             func() time.Time
}

func NewRewardSummaryJob(customerSvc customer.CustomerService, logger *slog.Logger) *RewardSummaryJob {
	if customerSvc == nil || logger == nil {
		panic("RewardSummaryJob dependencies cannot be nil")
	}
	return &RewardSummaryJob{
		customerService: customerSvc,
		logger:          logger.With("job", "RewardSummary"),
		now:             time.Now,
	}
}

func (j *RewardSummaryJob) Run(ctx context.Context) (*RewardSummary, error) {
	startTime := j.now()
	j.logger.InfoContext(ctx, "Starting reward summary job.")

	customers, err := j.customerService.List(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to list customers, aborting job.", slog.Any("error", err))
		return nil, fmt.Errorf("cannot run job, failed to list customers: %w", err)
	}

	goal := j.customerService.GoalDollars()
	summary := &RewardSummary{Customers: len(customers), TotalSpentCents: decimal.Zero}
	for _, c := range customers {
		summary.TotalSpentCents = summary.TotalSpentCents.Add(decimal.NewFromInt(c.TotalSpentCents))
		if customer.GoalReached(c.TotalSpentCents, goal) {
			summary.CustomersAtGoal++
		}
	}

	monitoring.Rewards.CustomersTotal.Set(float64(summary.Customers))
	monitoring.Rewards.CustomersAtGoal.Set(float64(summary.CustomersAtGoal))
	monitoring.Rewards.TotalSpentCents.Set(summary.TotalSpentCents.InexactFloat64())
	monitoring.Rewards.LastSummaryUnixTime.Set(float64(j.now().Unix()))

	j.logger.InfoContext(ctx, "Reward summary job finished successfully.",
		slog.Duration("duration", j.now().Sub(startTime)),
		slog.Int("customers", summary.Customers),
		slog.Int("customers_at_goal", summary.CustomersAtGoal),
		slog.String("total_spent_cents", summary.TotalSpentCents.String()),
	)
	return summary, nil
}
