// internal/chaos/experiments.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// RegisterExperiments registers the marketplace experiments against sb.
func (e *Engine) RegisterExperiments(sb *Sandbox, duration time.Duration) {
	e.Register(RegistryOutageExperiment(sb, duration))
	e.Register(SettlementFailureExperiment(sb, duration))
	e.Register(ConcurrentPurchaseRaceExperiment(sb, duration))
}

// ErrNoSales is reported when a purchase wave expected to succeed sold nothing.
var ErrNoSales = errors.New("no purchase succeeded")

func invariants(sb *Sandbox) []Metric {
	return []Metric{
		{
			Name:      "value_conserved",
			Query:     sb.ValueConserved,
			Threshold: Threshold{Operator: "==", Value: 1},
		},
		{
			Name:      "custody_inconsistencies",
			Query:     sb.CustodyInconsistencies,
			Threshold: Threshold{Operator: "==", Value: 0},
		},
		{
			Name:      "double_sales",
			Query:     sb.DoubleSales,
			Threshold: Threshold{Operator: "==", Value: 0},
		},
	}
}

func invariantAssertions() []Assertion {
	return []Assertion{
		{
			Metric:    "value_conserved",
			Condition: func(v float64) bool { return v == 1 },
			Message:   "No value should be created or destroyed",
		},
		{
			Metric:    "custody_inconsistencies",
			Condition: func(v float64) bool { return v == 0 },
			Message:   "Unsold tokens stay in escrow and sold tokens leave it",
		},
		{
			Metric:    "double_sales",
			Condition: func(v float64) bool { return v == 0 },
			Message:   "No item is sold twice",
		},
	}
}

// wave runs a purchase wave and reports an error when the outcome does not
// match what the fault allows.
func wave(sb *Sandbox, wantSales bool) func(context.Context) error {
	return func(ctx context.Context) error {
		sold := sb.PurchaseWave(ctx)
		if wantSales && sold == 0 {
			return ErrNoSales
		}
		if !wantSales && sold > 0 {
			return fmt.Errorf("%d purchases succeeded during outage", sold)
		}
		return nil
	}
}

// RegistryOutageExperiment breaks custody transfers while buyers keep
// purchasing.
func RegistryOutageExperiment(sb *Sandbox, duration time.Duration) Experiment {
	return Experiment{
		Name:        "registry-outage",
		Hypothesis:  "Purchases roll back every payment when the registry cannot release custody",
		SteadyState: invariants(sb),
		Method: []Action{
			{
				Type:   "fail-transfers",
				Target: "asset-registry",
				Execute: func(ctx context.Context) error {
					sb.Assets.SetDown(true)
					return nil
				},
			},
			{
				Type:    "purchase-wave",
				Target:  "marketplace",
				Execute: wave(sb, false),
			},
		},
		Rollback: []Action{
			{
				Type:   "restore-transfers",
				Target: "asset-registry",
				Execute: func(ctx context.Context) error {
					sb.Assets.SetDown(false)
					return nil
				},
			},
		},
		Validation:     invariantAssertions(),
		Duration:       duration,
		SampleInterval: duration / 4,
	}
}

// SettlementFailureExperiment makes the fee leg of every settlement fail.
func SettlementFailureExperiment(sb *Sandbox, duration time.Duration) Experiment {
	return Experiment{
		Name:        "fee-settlement-failure",
		Hypothesis:  "A failed fee payment refunds the seller leg and the buyer",
		SteadyState: invariants(sb),
		Method: []Action{
			{
				Type:   "fail-ledger",
				Target: "fee-account",
				Execute: func(ctx context.Context) error {
					sb.Funds.FailTransfersTo(sb.Deployer)
					return nil
				},
			},
			{
				Type:    "purchase-wave",
				Target:  "marketplace",
				Execute: wave(sb, false),
			},
		},
		Rollback: []Action{
			{
				Type:   "heal-ledger",
				Target: "fee-account",
				Execute: func(ctx context.Context) error {
					sb.Funds.Heal()
					return nil
				},
			},
		},
		Validation:     invariantAssertions(),
		Duration:       duration,
		SampleInterval: duration / 4,
	}
}

// ConcurrentPurchaseRaceExperiment has every buyer race for the same item.
func ConcurrentPurchaseRaceExperiment(sb *Sandbox, duration time.Duration) Experiment {
	return Experiment{
		Name:        "concurrent-purchase-race",
		Hypothesis:  "Exactly one of many simultaneous buyers gets an item",
		SteadyState: invariants(sb),
		Method: []Action{
			{
				Type:   "concurrent-requests",
				Target: "marketplace",
				Execute: func(ctx context.Context) error {
					var target uint64
					for _, item := range sb.Market.ListItems(ctx) {
						if !item.Sold {
							target = item.ItemID
							break
						}
					}
					if target == 0 {
						return fmt.Errorf("no unsold item to race for")
					}
					total := sb.Market.GetTotalPrice(ctx, target)

					var (
						wg   sync.WaitGroup
						mu   sync.Mutex
						wins int
					)
					for _, buyer := range sb.Buyers {
						buyer := buyer
						wg.Add(1)
						go func() {
							defer wg.Done()
							if err := sb.Market.PurchaseItem(ctx, buyer, target, total); err == nil {
								mu.Lock()
								wins++
								mu.Unlock()
							}
						}()
					}
					wg.Wait()

					if wins != 1 {
						return fmt.Errorf("item %d sold %d times", target, wins)
					}
					return nil
				},
			},
		},
		Validation:     invariantAssertions(),
		Duration:       duration,
		SampleInterval: duration / 4,
	}
}
