package modules

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Thresholds control which fitted terms become module edges.
type Thresholds struct {
	PValueMax         float64 `yaml:"p_value_max" json:"p_value_max"`
	MinTerms          int     `yaml:"min_terms" json:"min_terms"`
	MinGenesPerModule int     `yaml:"min_genes_per_module" json:"min_genes_per_module"`
	MinRSquared       float64 `yaml:"min_r_squared" json:"min_r_squared"`
	UseAdjusted       bool    `yaml:"use_adjusted" json:"use_adjusted"`
	// MaxTargets caps targets per regulator; 0 keeps all.
	MaxTargets int `yaml:"max_targets" json:"max_targets"`
}

// DefaultThresholds returns the thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PValueMax:         0.05,
		MinTerms:          1,
		MinGenesPerModule: 5,
		MinRSquared:       0.1,
	}
}

func (t Thresholds) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.PValueMax, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&t.MinTerms, validation.Min(0)),
		validation.Field(&t.MinGenesPerModule, validation.Min(0)),
		validation.Field(&t.MinRSquared, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&t.MaxTargets, validation.Min(0)),
	)
}

// Looser reports whether every edge kept under o is also kept under t,
// assuming MaxTargets is zero for both.
func (t Thresholds) Looser(o Thresholds) bool {
	return t.UseAdjusted == o.UseAdjusted &&
		t.PValueMax >= o.PValueMax &&
		t.MinTerms <= o.MinTerms &&
		t.MinGenesPerModule <= o.MinGenesPerModule &&
		t.MinRSquared <= o.MinRSquared
}
