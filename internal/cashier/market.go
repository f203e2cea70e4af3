package cashier

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Package is a mock market bundle. No payment is taken.
type Package struct {
	ID     string          `json:"id"`
	USD    decimal.Decimal `json:"usd"`
	Tokens int64           `json:"tokens"`
}

// TokensPerUSD is the effective exchange rate of the bundle.
func (p Package) TokensPerUSD() decimal.Decimal {
	if p.USD.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(p.Tokens).Div(p.USD).Round(2)
}

// BonusPercent compares the bundle rate against the base bundle.
func (p Package) BonusPercent(base Package) decimal.Decimal {
	baseRate := base.TokensPerUSD()
	if baseRate.IsZero() {
		return decimal.Zero
	}
	return p.TokensPerUSD().Sub(baseRate).Div(baseRate).Mul(decimal.NewFromInt(100)).Round(0)
}

var packages = []Package{
	{ID: "usd-1", USD: decimal.NewFromInt(1), Tokens: 1000},
	{ID: "usd-5", USD: decimal.NewFromInt(5), Tokens: 6000},
	{ID: "usd-10", USD: decimal.NewFromInt(10), Tokens: 12000},
}

// Packages lists the bundles in ascending price order.
func Packages() []Package {
	out := make([]Package, len(packages))
	copy(out, packages)
	return out
}

// Listing is a package as shown in the market, with its rate and its bonus
// over the cheapest bundle.
type Listing struct {
	Package
	TokensPerUSD decimal.Decimal `json:"tokens_per_usd"`
	BonusPercent decimal.Decimal `json:"bonus_percent"`
}

// Listings returns every package priced against the cheapest one.
func Listings() []Listing {
	out := make([]Listing, 0, len(packages))
	for _, p := range packages {
		out = append(out, Listing{
			Package:      p,
			TokensPerUSD: p.TokensPerUSD(),
			BonusPercent: p.BonusPercent(packages[0]),
		})
	}
	return out
}

// FindPackage accepts an id such as "usd-5" or a plain price such as "5" or "$5.00".
func FindPackage(ref string) (Package, bool) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	for _, p := range packages {
		if p.ID == ref {
			return p, true
		}
	}
	price, err := decimal.NewFromString(strings.TrimPrefix(ref, "$"))
	if err != nil {
		return Package{}, false
	}
	for _, p := range packages {
		if p.USD.Equal(price) {
			return p, true
		}
	}
	return Package{}, false
}
