package evaluate

import (
	"github.com/vitimonitor/vitimonitor/internal/model"
)

// StressThresholds parametrizza la regola composta di stress idrico:
// umidità suolo bassa E luminosità alta insieme (AND, a differenza della
// regola per-metrica che è un OR sui range).
type StressThresholds struct {
	SoilMax float64 `json:"soil_max"` // %
	LuxMin  float64 `json:"lux_min"`  // lux
}

// DefaultStressThresholds: 20% suolo, 100000 lux (default del prototipo,
// regolabili dall'operatore).
func DefaultStressThresholds() StressThresholds {
	return StressThresholds{SoilMax: 20, LuxMin: 100000}
}

// WaterStress ritorna le letture a rischio stress idrico:
// humidity_soil <= SoilMax && luminosity >= LuxMin.
func WaterStress(readings []model.Reading, th StressThresholds) []model.Reading {
	var out []model.Reading
	for _, r := range readings {
		if r.HumiditySoil <= th.SoilMax && r.Luminosity >= th.LuxMin {
			out = append(out, r)
		}
	}
	return out
}
