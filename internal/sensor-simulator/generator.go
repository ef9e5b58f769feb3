// Package sensor_simulator genera telemetria realistica di vigneto: valori
// gaussiani attorno a condizioni tipiche con picchi anomali occasionali, per
// esercitare valutatore e pianificatore a valle.
package sensor_simulator

import (
	"math/rand"
	"time"

	"github.com/vitimonitor/vitimonitor/internal/model"
	"github.com/vitimonitor/vitimonitor/internal/signature"
)

// ====== Tunables ======
const (
	// anomalyRate: probabilità che una singola metrica esca dal regime
	// normale e produca un picco.
	anomalyRate = 0.05

	// maxSampleLag: ritardo massimo fra campionamento e pubblicazione,
	// riflesso nel timestamp della lettura.
	maxSampleLag = 3 * time.Second

	// gpsJitter: deriva massima (in gradi) attorno alla posizione nominale
	// del sensore, simula l'imprecisione del fix.
	gpsJitter = 0.0005
)

// SensorConfig descrive il sensore simulato.
type SensorConfig struct {
	ID   string
	Zone string
	Lat  float64
	Lon  float64
}

// Signer produce la firma da allegare alla lettura.
type Signer func(r model.Reading) string

// PrefixSigner usa lo schema a tag fisso accettato di default dal backend.
func PrefixSigner(r model.Reading) string {
	return signature.PrefixTag + r.SensorID
}

// HMACSigner firma con la chiave condivisa del sensore.
func HMACSigner(key []byte) Signer {
	return func(r model.Reading) string {
		return signature.Sign(key, r)
	}
}

// metricRegime definisce il regime normale di una metrica e l'intervallo
// uniforme da cui pescare i picchi anomali.
type metricRegime struct {
	mean, std           float64
	spikeLow, spikeHigh float64
	min, max            float64
}

var regimes = map[model.Metric]metricRegime{
	model.MetricTemperature:  {mean: 20, std: 5, spikeLow: -10, spikeHigh: 50, min: -20, max: 60},
	model.MetricHumidityAir:  {mean: 50, std: 10, spikeLow: 0, spikeHigh: 100, min: 0, max: 100},
	model.MetricHumiditySoil: {mean: 25, std: 5, spikeLow: 0, spikeHigh: 100, min: 0, max: 100},
	model.MetricLuminosity:   {mean: 300, std: 50, spikeLow: 0, spikeHigh: 200000, min: 0, max: 200000},
}

// Generator produce letture firmate per un singolo sensore.
type Generator struct {
	sensor SensorConfig
	sign   Signer
	rng    *rand.Rand
	now    func() time.Time
}

func NewGenerator(sensor SensorConfig, sign Signer, seed int64) *Generator {
	return &Generator{
		sensor: sensor,
		sign:   sign,
		rng:    rand.New(rand.NewSource(seed)),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Next genera la prossima lettura. Il timestamp è il momento del
// campionamento, fino a maxSampleLag prima di adesso.
func (g *Generator) Next() model.Reading {
	lag := time.Duration(g.rng.Int63n(int64(maxSampleLag)))
	r := model.Reading{
		SensorID:     g.sensor.ID,
		Zone:         g.sensor.Zone,
		Temperature:  g.sample(model.MetricTemperature),
		HumidityAir:  g.sample(model.MetricHumidityAir),
		HumiditySoil: g.sample(model.MetricHumiditySoil),
		Luminosity:   g.sample(model.MetricLuminosity),
		GPS: &model.GPS{
			Lat: g.sensor.Lat + (g.rng.Float64()*2-1)*gpsJitter,
			Lon: g.sensor.Lon + (g.rng.Float64()*2-1)*gpsJitter,
		},
		Timestamp: g.now().Add(-lag),
	}
	r.Signature = g.sign(r)
	return r
}

func (g *Generator) sample(m model.Metric) float64 {
	reg := regimes[m]
	var v float64
	if g.rng.Float64() < anomalyRate {
		v = reg.spikeLow + g.rng.Float64()*(reg.spikeHigh-reg.spikeLow)
	} else {
		v = reg.mean + g.rng.NormFloat64()*reg.std
	}
	if v < reg.min {
		v = reg.min
	}
	if v > reg.max {
		v = reg.max
	}
	return v
}
