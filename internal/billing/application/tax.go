package application

import (
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const defaultTaxCountry = "España"

var defaultTaxRate = decimal.NewFromInt(21)

// TaxTable maps billing countries to VAT rates in percent. Lookups are exact
// and case-sensitive after trimming; unknown or blank countries get the
// default rate.
type TaxTable struct {
	rates          map[string]decimal.Decimal
	defaultRate    decimal.Decimal
	defaultCountry string
}

// NewTaxTable returns the standard rate table.
func NewTaxTable() *TaxTable {
	rates := map[string]int64{
		"España":         21,
		"ESPAÑA":         21,
		"Mexico":         16,
		"México":         16,
		"Argentina":      21,
		"Colombia":       19,
		"Chile":          19,
		"Peru":           18,
		"Perú":           18,
		"USA":            0,
		"Estados Unidos": 0,
		"UK":             20,
		"Reino Unido":    20,
		"Alemania":       19,
		"Francia":        20,
		"Italia":         22,
		"Portugal":       23,
	}
	table := lo.MapValues(rates, func(rate int64, _ string) decimal.Decimal {
		return decimal.NewFromInt(rate)
	})
	return NewTaxTableWith(table, defaultTaxRate, defaultTaxCountry)
}

// NewTaxTableWith builds a table from explicit rates.
func NewTaxTableWith(rates map[string]decimal.Decimal, defaultRate decimal.Decimal, defaultCountry string) *TaxTable {
	return &TaxTable{rates: lo.Assign(rates), defaultRate: defaultRate, defaultCountry: defaultCountry}
}

// RateFor returns the rate for country, or the default rate.
func (t *TaxTable) RateFor(country string) decimal.Decimal {
	country = strings.TrimSpace(country)
	if country == "" {
		return t.defaultRate
	}
	if rate, ok := t.rates[country]; ok {
		return rate
	}
	return t.defaultRate
}

// DefaultRate is applied to unknown countries.
func (t *TaxTable) DefaultRate() decimal.Decimal {
	return t.defaultRate
}

// DefaultCountry is assumed when a subscriber's profile has no country.
func (t *TaxTable) DefaultCountry() string {
	return t.defaultCountry
}

// Rates returns a copy of the table.
func (t *TaxTable) Rates() map[string]decimal.Decimal {
	return lo.Assign(t.rates)
}
