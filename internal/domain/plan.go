package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Plan enumerates subscription plans.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanScholar Plan = "scholar"
	PlanGenius  Plan = "genius"
)

// Unlimited is the daily limit and remaining-credit sentinel for plans without a quota.
const Unlimited = -1

// LowCreditThreshold is the remaining balance at which users are reminded to upgrade.
const LowCreditThreshold = 10

var planLimits = map[Plan]int{
	PlanFree:    3,
	PlanScholar: 100,
	PlanGenius:  Unlimited,
}

var titleCaser = cases.Title(language.English)

// ParsePlan normalizes user input into a known plan.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := planLimits[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlan, s)
	}
	return p, nil
}

// Valid reports whether the plan is part of the catalog.
func (p Plan) Valid() bool {
	_, ok := planLimits[p]
	return ok
}

// DailyLimit returns the number of credits granted per day, or Unlimited.
func (p Plan) DailyLimit() int {
	if limit, ok := planLimits[p]; ok {
		return limit
	}
	return 0
}

// IsUnlimited reports whether consumption is never metered for the plan.
func (p Plan) IsUnlimited() bool {
	return p.DailyLimit() == Unlimited
}

// Title returns the display name, e.g. "Scholar".
func (p Plan) Title() string {
	return titleCaser.String(string(p))
}

// PriceList maps purchasable plans to their bank-transfer price in whole rupees.
type PriceList map[Plan]int64

// DefaultPrices mirrors the public pricing page.
func DefaultPrices() PriceList {
	return PriceList{
		PlanScholar: 499,
		PlanGenius:  990,
	}
}

// Price returns the price of a purchasable plan.
func (pl PriceList) Price(p Plan) (int64, bool) {
	price, ok := pl[p]
	if !ok || price <= 0 {
		return 0, false
	}
	return price, true
}

// Matches reports whether amount is exactly the listed price for p.
func (pl PriceList) Matches(p Plan, amount int64) bool {
	price, ok := pl.Price(p)
	return ok && price == amount
}
