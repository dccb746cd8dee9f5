package liquidity

import (
	"math"
	"testing"
	"time"
)

func TestBuildPlanSplitsTheGap(t *testing.T) {
	p := NewPlanner("minswap", "sundaeswap")

	plan := p.BuildPlan(20_000, 100_000)

	if plan.GapUSD != 80_000 {
		t.Fatalf("expected gap 80000, got %f", plan.GapUSD)
	}
	if len(plan.Actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(plan.Actions))
	}

	if plan.Actions[0].Venue != "minswap" || plan.Actions[0].AmountUSD != 40_000 {
		t.Fatalf("primary pool gets half the gap, got %+v", plan.Actions[0])
	}
	if plan.Actions[1].Venue != "sundaeswap" || plan.Actions[1].AmountUSD != 24_000 {
		t.Fatalf("secondary pool gets 30%%, got %+v", plan.Actions[1])
	}
	if plan.Actions[2].Kind != "incentive_program" || plan.Actions[2].AmountUSD != 16_000 {
		t.Fatalf("incentive program gets 20%%, got %+v", plan.Actions[2])
	}

	total := 0.0
	for _, action := range plan.Actions {
		total += action.AmountUSD
	}
	if math.Abs(total-plan.GapUSD) > 1e-9 {
		t.Fatalf("actions must sum to the gap: %f vs %f", total, plan.GapUSD)
	}

	if plan.Duration != 90*24*time.Hour {
		t.Fatalf("expected a 90-day horizon, got %s", plan.Duration)
	}
}

func TestBuildPlanSchedule(t *testing.T) {
	p := NewPlanner("minswap", "sundaeswap")

	plan := p.BuildPlan(0, 100_000)

	if len(plan.Schedule) != 4 {
		t.Fatalf("expected 4 weekly installments, got %d", len(plan.Schedule))
	}

	// Pool deposits (80% of the gap) split evenly across the weeks.
	weekly := 80_000.0 / 4
	for i, inst := range plan.Schedule {
		if inst.Week != i+1 {
			t.Fatalf("installment %d has week %d", i, inst.Week)
		}
		if math.Abs(inst.AmountUSD-weekly) > 1e-9 {
			t.Fatalf("expected weekly amount %f, got %f", weekly, inst.AmountUSD)
		}
		if math.Abs(inst.QuoteSideUSD+inst.TokenSideUSD-inst.AmountUSD) > 1e-9 {
			t.Fatalf("installment sides must sum to the amount: %+v", inst)
		}
		if math.Abs(inst.QuoteSideUSD-weekly*0.7) > 1e-9 {
			t.Fatalf("quote side is 70%% of the tranche, got %f", inst.QuoteSideUSD)
		}
	}
}

func TestBuildPlanNoGap(t *testing.T) {
	p := NewPlanner("", "")

	plan := p.BuildPlan(150_000, 100_000)

	if plan.GapUSD != 0 {
		t.Fatalf("expected zero gap, got %f", plan.GapUSD)
	}
	if len(plan.Actions) != 0 || len(plan.Schedule) != 0 {
		t.Fatalf("expected an empty plan, got %+v", plan)
	}
}

func TestBuildPlanNegativeCurrentClampsToZero(t *testing.T) {
	p := NewPlanner("minswap", "sundaeswap")

	plan := p.BuildPlan(-500, 10_000)

	if plan.CurrentLiquidityUSD != 0 {
		t.Fatalf("negative current liquidity must clamp to 0, got %f", plan.CurrentLiquidityUSD)
	}
	if plan.GapUSD != 10_000 {
		t.Fatalf("expected gap 10000, got %f", plan.GapUSD)
	}
}
