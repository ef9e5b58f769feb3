// Package evaluate classifica le letture: range operativi statici per
// metrica, indice di qualità rispetto ai target di zona e regola composta di
// stress idrico. Le anomalie sono derivate, mai persistite: si ricalcolano
// on demand dall'insieme delle letture.
package evaluate

import (
	"github.com/vitimonitor/vitimonitor/internal/model"
)

// Range è l'intervallo operativo [Low, High] di una metrica: i bound sono
// inclusi, fuori dai bound la lettura è anomala.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Outside ritorna true quando v < Low oppure v > High.
func (rg Range) Outside(v float64) bool {
	return v < rg.Low || v > rg.High
}

// Ranges mappa ogni metrica al suo intervallo operativo.
type Ranges map[model.Metric]Range

// DefaultRanges sono le soglie del prototipo. Valori di policy: restano
// configurabili via env, questi sono solo i default.
func DefaultRanges() Ranges {
	return Ranges{
		model.MetricTemperature:  {Low: 0, High: 40},
		model.MetricHumidityAir:  {Low: 30, High: 70},
		model.MetricHumiditySoil: {Low: 15, High: 35},
		model.MetricLuminosity:   {Low: 0, High: 100000},
	}
}

// Anomaly è una lettura fuori range su una metrica. La stessa lettura può
// comparire una volta per ogni metrica violata.
type Anomaly struct {
	Reading model.Reading `json:"reading"`
	Metric  model.Metric  `json:"metric"`
	Value   float64       `json:"value"`
	Range   Range         `json:"range"`
}

type Evaluator struct {
	ranges Ranges
}

func NewEvaluator(ranges Ranges) *Evaluator {
	if len(ranges) == 0 {
		ranges = DefaultRanges()
	}
	return &Evaluator{ranges: ranges}
}

// Evaluate ritorna il sottoinsieme di letture che violano il range statico
// della metrica indicata.
func (e *Evaluator) Evaluate(readings []model.Reading, metric model.Metric) []Anomaly {
	rg, ok := e.ranges[metric]
	if !ok {
		return nil
	}
	var out []Anomaly
	for _, r := range readings {
		v := r.Value(metric)
		if rg.Outside(v) {
			out = append(out, Anomaly{Reading: r, Metric: metric, Value: v, Range: rg})
		}
	}
	return out
}

// EvaluateAll è l'unione delle anomalie su tutte e quattro le metriche.
func (e *Evaluator) EvaluateAll(readings []model.Reading) []Anomaly {
	var out []Anomaly
	for _, m := range model.Metrics {
		out = append(out, e.Evaluate(readings, m)...)
	}
	return out
}
