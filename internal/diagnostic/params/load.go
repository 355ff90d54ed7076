package params

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"copro-diagnostic/internal/common/errors"
	"copro-diagnostic/internal/models"
)

// fileTable is the YAML layout of a parameter table. Transitions are written
// as "F-C" and rental ban dates as "2028-01-01".
type fileTable struct {
	Version    string             `yaml:"version"`
	CostPerSqm map[string]float64 `yaml:"cost_per_sqm"`
	Subsidies  ProfileRules       `yaml:"subsidies"`
	Bonuses    Bonuses            `yaml:"bonuses"`
	Fees       Fees               `yaml:"fees"`
	Collective Collective         `yaml:"collective"`
	Loan       Loan               `yaml:"loan"`
	Energy     struct {
		Energy         `yaml:",inline"`
		ConsumptionKWh map[string]float64 `yaml:"consumption_kwh"`
	} `yaml:"energy"`
	Policy     string            `yaml:"policy"`
	Weights    Weights           `yaml:"weights"`
	GreenValue GreenValue        `yaml:"green_value"`
	Inaction   Inaction          `yaml:"inaction"`
	RentalBans map[string]string `yaml:"rental_bans"`
}

// Load returns the table at path, or the built-in table when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		t := Default()
		return t, t.Validate()
	}
	return LoadFile(path)
}

// LoadFile reads and validates a YAML parameter table.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("read parameter table %s: %v", path, err))
	}
	return Parse(data)
}

// Parse decodes and validates a YAML parameter table.
func Parse(data []byte) (*Table, error) {
	var f fileTable
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("decode parameter table: %v", err))
	}

	t := &Table{
		Version:    f.Version,
		CostPerSqm: make(map[models.Transition]float64, len(f.CostPerSqm)),
		Subsidies:  f.Subsidies,
		Bonuses:    f.Bonuses,
		Fees:       f.Fees,
		Collective: f.Collective,
		Loan:       f.Loan,
		Energy:     f.Energy.Energy,
		Policy:     models.FinancingPolicy(f.Policy),
		Weights:    f.Weights,
		GreenValue: f.GreenValue,
		Inaction:   f.Inaction,
		RentalBans: make(map[models.Rating]time.Time, len(f.RentalBans)),
	}
	if t.Policy == "" {
		t.Policy = models.PolicyConservative
	}

	for key, cost := range f.CostPerSqm {
		tr, err := models.ParseTransition(key)
		if err != nil {
			return nil, errors.NewConfigurationError(fmt.Sprintf("cost_per_sqm: %v", err))
		}
		t.CostPerSqm[tr] = cost
	}

	t.Energy.ConsumptionKWh = make(map[models.Rating]float64, len(f.Energy.ConsumptionKWh))
	for key, kwh := range f.Energy.ConsumptionKWh {
		r, err := models.ParseRating(key)
		if err != nil {
			return nil, errors.NewConfigurationError(fmt.Sprintf("energy.consumption_kwh: %v", err))
		}
		t.Energy.ConsumptionKWh[r] = kwh
	}

	for key, date := range f.RentalBans {
		r, err := models.ParseRating(key)
		if err != nil {
			return nil, errors.NewConfigurationError(fmt.Sprintf("rental_bans: %v", err))
		}
		at, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, errors.NewConfigurationError(fmt.Sprintf("rental_bans[%s]: %v", key, err))
		}
		t.RentalBans[r] = at
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
