package model

import (
	"time"
)

// Metric identifica una delle quattro grandezze rilevate dai sensori.
type Metric string

const (
	MetricTemperature  Metric = "temperature"
	MetricHumidityAir  Metric = "humidity_air"
	MetricHumiditySoil Metric = "humidity_soil"
	MetricLuminosity   Metric = "luminosity"
)

// Metrics elenca le metriche nell'ordine usato da valutatore e report.
var Metrics = []Metric{MetricTemperature, MetricHumidityAir, MetricHumiditySoil, MetricLuminosity}

type GPS struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Reading è l'unità atomica di telemetria: una misura di un sensore
// (o inserita a mano da un operatore). Una volta persistita è immutabile.
type Reading struct {
	ID           int64     `json:"id,omitempty"`
	SensorID     string    `json:"sensor_id"`
	Zone         string    `json:"zone"`
	Temperature  float64   `json:"temperature"`
	HumidityAir  float64   `json:"humidity_air"`
	HumiditySoil float64   `json:"humidity_soil"`
	Luminosity   float64   `json:"luminosity"`
	GPS          *GPS      `json:"gps,omitempty"`
	Signature    string    `json:"signature,omitempty"`
	Manual       bool      `json:"manual"`
	Timestamp    time.Time `json:"timestamp"`
}

// Value restituisce il valore della metrica richiesta.
func (r Reading) Value(m Metric) float64 {
	switch m {
	case MetricTemperature:
		return r.Temperature
	case MetricHumidityAir:
		return r.HumidityAir
	case MetricHumiditySoil:
		return r.HumiditySoil
	case MetricLuminosity:
		return r.Luminosity
	}
	return 0
}

// ZoneTarget contiene i valori ottimali per zona impostati dall'enologo,
// usati per il calcolo dell'indice di qualità. Una riga per zona.
type ZoneTarget struct {
	Zone            string  `json:"zone"`
	TemperatureOpt  float64 `json:"temperature_opt"`
	HumidityAirOpt  float64 `json:"humidity_air_opt"`
	HumiditySoilOpt float64 `json:"humidity_soil_opt"`
}

// DefaultZoneTarget è il fallback quando una zona non ha un target configurato.
func DefaultZoneTarget(zone string) ZoneTarget {
	return ZoneTarget{
		Zone:            zone,
		TemperatureOpt:  22,
		HumidityAirOpt:  50,
		HumiditySoilOpt: 30,
	}
}
