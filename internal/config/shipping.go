package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ShippingRates is the carrier table used to quote shipping. Regions are
// inclusive postal-code ranges; a code outside every region has no coverage.
type ShippingRates struct {
	Services []ShippingService `yaml:"services"`
	Regions  []ShippingRegion  `yaml:"regions"`
}

type ShippingService struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type ShippingRegion struct {
	Name  string                  `yaml:"name"`
	From  string                  `yaml:"from"`
	To    string                  `yaml:"to"`
	Rates map[string]ShippingRate `yaml:"rates"`
}

type ShippingRate struct {
	BaseCents  int64 `yaml:"base_cents"`
	PerKgCents int64 `yaml:"per_kg_cents"`
	Days       int   `yaml:"days"`
}

func LoadShippingRates(path string) (*ShippingRates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shipping rates file: %w", err)
	}
	var rates ShippingRates
	if err := yaml.Unmarshal(data, &rates); err != nil {
		return nil, fmt.Errorf("failed to parse shipping rates file: %w", err)
	}
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	return &rates, nil
}

func (r *ShippingRates) Validate() error {
	known := make(map[string]bool, len(r.Services))
	for _, s := range r.Services {
		if s.Code == "" {
			return fmt.Errorf("shipping service without code")
		}
		known[s.Code] = true
	}
	for _, reg := range r.Regions {
		if !isPostalCode(reg.From) || !isPostalCode(reg.To) {
			return fmt.Errorf("region %q: from/to must be 8-digit postal codes", reg.Name)
		}
		if reg.From > reg.To {
			return fmt.Errorf("region %q: from %s is after to %s", reg.Name, reg.From, reg.To)
		}
		for code, rate := range reg.Rates {
			if !known[code] {
				return fmt.Errorf("region %q: unknown service %q", reg.Name, code)
			}
			if rate.BaseCents < 0 || rate.PerKgCents < 0 || rate.Days <= 0 {
				return fmt.Errorf("region %q: invalid rate for %s", reg.Name, code)
			}
		}
	}
	return nil
}

func isPostalCode(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// DefaultShippingRates covers every valid Brazilian postal code with an
// economy (PAC) and an expedited (SEDEX) service.
func DefaultShippingRates() *ShippingRates {
	return &ShippingRates{
		Services: []ShippingService{
			{Code: "PAC", Name: "PAC"},
			{Code: "SEDEX", Name: "SEDEX"},
		},
		Regions: []ShippingRegion{
			{Name: "sp", From: "01000000", To: "19999999", Rates: map[string]ShippingRate{
				"PAC":   {BaseCents: 1500, PerKgCents: 300, Days: 5},
				"SEDEX": {BaseCents: 2390, PerKgCents: 550, Days: 2},
			}},
			{Name: "sudeste", From: "20000000", To: "39999999", Rates: map[string]ShippingRate{
				"PAC":   {BaseCents: 1890, PerKgCents: 400, Days: 7},
				"SEDEX": {BaseCents: 2990, PerKgCents: 700, Days: 3},
			}},
			{Name: "nordeste-norte", From: "40000000", To: "69999999", Rates: map[string]ShippingRate{
				"PAC":   {BaseCents: 2590, PerKgCents: 650, Days: 12},
				"SEDEX": {BaseCents: 4290, PerKgCents: 1100, Days: 5},
			}},
			{Name: "centro-oeste", From: "70000000", To: "79999999", Rates: map[string]ShippingRate{
				"PAC":   {BaseCents: 2190, PerKgCents: 500, Days: 9},
				"SEDEX": {BaseCents: 3590, PerKgCents: 900, Days: 4},
			}},
			{Name: "sul", From: "80000000", To: "99999999", Rates: map[string]ShippingRate{
				"PAC":   {BaseCents: 1990, PerKgCents: 450, Days: 8},
				"SEDEX": {BaseCents: 3290, PerKgCents: 800, Days: 3},
			}},
		},
	}
}
