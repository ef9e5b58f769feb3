package evaluate

import (
	"github.com/vitimonitor/vitimonitor/internal/model"
)

// pesi del composito di qualità (dal tab enologo del prototipo)
const (
	weightTemp    = 0.5
	weightHumAir  = 0.3
	weightHumSoil = 0.2
)

// QualityRow è l'indice di qualità di una singola lettura rispetto al target
// della sua zona. Usato per report e alert, non genera attività.
type QualityRow struct {
	Reading      model.Reading `json:"reading"`
	QTemp        float64       `json:"q_temp"`
	QHumAir      float64       `json:"q_hum_air"`
	QHumSoil     float64       `json:"q_hum_soil"`
	QualityIndex float64       `json:"quality_index"`
}

// Quality calcola l'indice per ogni lettura. Una zona senza target usa il
// default definito, mai un errore: una config mancante non deve far fallire
// il batch.
func Quality(readings []model.Reading, targets []model.ZoneTarget) []QualityRow {
	byZone := make(map[string]model.ZoneTarget, len(targets))
	for _, t := range targets {
		byZone[t.Zone] = t
	}

	out := make([]QualityRow, 0, len(readings))
	for _, r := range readings {
		t, ok := byZone[r.Zone]
		if !ok {
			t = model.DefaultZoneTarget(r.Zone)
		}
		row := QualityRow{
			Reading:  r,
			QTemp:    closeness(r.Temperature, t.TemperatureOpt),
			QHumAir:  closeness(r.HumidityAir, t.HumidityAirOpt),
			QHumSoil: closeness(r.HumiditySoil, t.HumiditySoilOpt),
		}
		row.QualityIndex = weightTemp*row.QTemp + weightHumAir*row.QHumAir + weightHumSoil*row.QHumSoil
		out = append(out, row)
	}
	return out
}

// closeness = clamp(1 - |v - opt| / opt, min=0), in [0,1].
func closeness(v, opt float64) float64 {
	if opt == 0 {
		return 0
	}
	q := 1 - abs(v-opt)/opt
	if q < 0 {
		return 0
	}
	return q
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
