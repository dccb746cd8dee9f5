// Package liquidity builds provisioning plans to close the gap between the
// asset's current DEX liquidity and a venue's listing floor.
package liquidity

import (
	"fmt"
	"time"
)

// Allocation splits between the primary pool, a secondary pool, and an LP
// incentive program.
const (
	primaryPoolShare   = 0.5
	secondaryPoolShare = 0.3
	incentiveShare     = 0.2

	incentiveDurationDays = 90
	scheduleWeeks         = 4
	// quoteSideShare is the quote-currency half of each deposit; the rest is
	// provided in the asset itself.
	quoteSideShare = 0.7
)

// Action is one step of the plan.
type Action struct {
	Kind        string
	Venue       string
	AmountUSD   float64
	Description string
}

// Installment is one tranche of the DCA deposit schedule.
type Installment struct {
	Week           int
	AmountUSD      float64
	QuoteSideUSD   float64
	TokenSideUSD   float64
	TargetDeposits []string
}

// Plan lays out how to fund the liquidity gap.
type Plan struct {
	CurrentLiquidityUSD float64
	TargetLiquidityUSD  float64
	GapUSD              float64
	Actions             []Action
	Schedule            []Installment
	Duration            time.Duration
}

// Planner is an optional capability: the analysis service holds a nil
// Planner when liquidity planning is not composed in, and checks that once
// at construction rather than per call site.
type Planner struct {
	primaryVenue   string
	secondaryVenue string
}

// NewPlanner constructs a planner targeting the two named pool venues.
func NewPlanner(primaryVenue, secondaryVenue string) *Planner {
	if primaryVenue == "" {
		primaryVenue = "primary-pool"
	}
	if secondaryVenue == "" {
		secondaryVenue = "secondary-pool"
	}
	return &Planner{primaryVenue: primaryVenue, secondaryVenue: secondaryVenue}
}

// BuildPlan produces a funding plan for reaching targetUSD from currentUSD.
// A target at or below current liquidity yields an empty plan with a zero
// gap.
func (p *Planner) BuildPlan(currentUSD, targetUSD float64) Plan {
	if currentUSD < 0 {
		currentUSD = 0
	}

	plan := Plan{
		CurrentLiquidityUSD: currentUSD,
		TargetLiquidityUSD:  targetUSD,
		Duration:            incentiveDurationDays * 24 * time.Hour,
	}

	gap := targetUSD - currentUSD
	if gap <= 0 {
		return plan
	}
	plan.GapUSD = gap

	plan.Actions = []Action{
		{
			Kind:        "add_liquidity",
			Venue:       p.primaryVenue,
			AmountUSD:   gap * primaryPoolShare,
			Description: fmt.Sprintf("Deposit $%.0f into the %s pool", gap*primaryPoolShare, p.primaryVenue),
		},
		{
			Kind:        "add_liquidity",
			Venue:       p.secondaryVenue,
			AmountUSD:   gap * secondaryPoolShare,
			Description: fmt.Sprintf("Deposit $%.0f into the %s pool", gap*secondaryPoolShare, p.secondaryVenue),
		},
		{
			Kind:        "incentive_program",
			AmountUSD:   gap * incentiveShare,
			Description: fmt.Sprintf("Fund a %d-day LP incentive program with $%.0f", incentiveDurationDays, gap*incentiveShare),
		},
	}

	// Pool deposits are spread over a weekly DCA schedule; the incentive
	// budget is committed up front.
	depositTotal := gap * (primaryPoolShare + secondaryPoolShare)
	weekly := depositTotal / scheduleWeeks
	for week := 1; week <= scheduleWeeks; week++ {
		plan.Schedule = append(plan.Schedule, Installment{
			Week:           week,
			AmountUSD:      weekly,
			QuoteSideUSD:   weekly * quoteSideShare,
			TokenSideUSD:   weekly * (1 - quoteSideShare),
			TargetDeposits: []string{p.primaryVenue, p.secondaryVenue},
		})
	}

	return plan
}
