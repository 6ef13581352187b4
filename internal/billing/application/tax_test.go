package application

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTaxTable_RateFor(t *testing.T) {
	table := NewTaxTable()

	tests := []struct {
		country string
		want    string
	}{
		{"España", "21"},
		{"ESPAÑA", "21"},
		{"México", "16"},
		{"Mexico", "16"},
		{"Argentina", "21"},
		{"Colombia", "19"},
		{"Chile", "19"},
		{"Perú", "18"},
		{"Peru", "18"},
		{"USA", "0"},
		{"Estados Unidos", "0"},
		{"UK", "20"},
		{"Reino Unido", "20"},
		{"Alemania", "19"},
		{"Francia", "20"},
		{"Italia", "22"},
		{"Portugal", "23"},
		{"  México  ", "16"},
		{"mexico", "21"},
		{"españa", "21"},
		{"Narnia", "21"},
		{"", "21"},
		{"   ", "21"},
	}
	for _, tt := range tests {
		t.Run(tt.country, func(t *testing.T) {
			assert.True(t, decimal.RequireFromString(tt.want).Equal(table.RateFor(tt.country)),
				"rate for %q = %s", tt.country, table.RateFor(tt.country))
		})
	}
}

func TestTaxTable_Defaults(t *testing.T) {
	table := NewTaxTable()
	assert.Equal(t, "España", table.DefaultCountry())
	assert.Equal(t, "21", table.DefaultRate().String())
	assert.Len(t, table.Rates(), 17)
}

func TestTaxTable_RatesIsACopy(t *testing.T) {
	table := NewTaxTable()
	rates := table.Rates()
	rates["México"] = decimal.NewFromInt(99)
	delete(rates, "Chile")

	assert.Equal(t, "16", table.RateFor("México").String())
	assert.Equal(t, "19", table.RateFor("Chile").String())
}

func TestNewTaxTableWith(t *testing.T) {
	table := NewTaxTableWith(map[string]decimal.Decimal{"Canada": decimal.NewFromInt(5)}, decimal.NewFromInt(10), "Canada")
	assert.Equal(t, "5", table.RateFor("Canada").String())
	assert.Equal(t, "10", table.RateFor("España").String())
	assert.Equal(t, "Canada", table.DefaultCountry())
}

func TestNewTaxTableWith_CopiesInput(t *testing.T) {
	rates := map[string]decimal.Decimal{"Canada": decimal.NewFromInt(5)}
	table := NewTaxTableWith(rates, decimal.NewFromInt(10), "Canada")

	rates["Canada"] = decimal.NewFromInt(50)
	rates["Japón"] = decimal.NewFromInt(8)

	assert.Equal(t, "5", table.RateFor("Canada").String())
	assert.Equal(t, "10", table.RateFor("Japón").String())
	assert.Len(t, table.Rates(), 1)
}
