package main

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config raccoglie tutta la configurazione del backend dall'ambiente.
// I valori di policy (soglie, lag, finestra) hanno i default del dominio e
// si cambiano senza toccare il codice.
type Config struct {
	Port           string        `envconfig:"PORT" default:"8000"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"5s"`

	// Stringa vuota = store in memoria (sviluppo e test).
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	DatabaseMaxConn int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`

	MQTTEnabled  bool   `envconfig:"MQTT_ENABLED" default:"false"`
	MQTTHost     string `envconfig:"MQTT_HOST" default:"localhost"`
	MQTTPort     int    `envconfig:"MQTT_PORT" default:"1883"`
	MQTTUser     string `envconfig:"MQTT_USER" default:"mqtt_user"`
	MQTTPassword string `envconfig:"MQTT_PASS" default:"mqtt_pwd"`
	MQTTClientID string `envconfig:"MQTT_CLIENT_ID" default:"backend-service"`
	MQTTTopic    string `envconfig:"MQTT_TOPIC" default:"sensor/data/#"`

	InfluxURL    string `envconfig:"INFLUX_URL"`
	InfluxToken  string `envconfig:"INFLUX_TOKEN"`
	InfluxOrg    string `envconfig:"INFLUX_ORG" default:"vitimonitor"`
	InfluxBucket string `envconfig:"INFLUX_BUCKET" default:"readings"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisTTL      time.Duration `envconfig:"REDIS_TTL" default:"24h"`

	// Verifica firma: "prefix" (tag fisso) oppure "hmac" con chiavi per
	// sensore nel formato "id1=hexkey1,id2=hexkey2".
	Verifier string `envconfig:"VERIFIER" default:"prefix"`
	HMACKeys string `envconfig:"HMAC_KEYS"`

	TempMin float64 `envconfig:"RANGE_TEMP_MIN" default:"0"`
	TempMax float64 `envconfig:"RANGE_TEMP_MAX" default:"40"`
	HumMin  float64 `envconfig:"RANGE_HUM_AIR_MIN" default:"30"`
	HumMax  float64 `envconfig:"RANGE_HUM_AIR_MAX" default:"70"`
	SoilMin float64 `envconfig:"RANGE_HUM_SOIL_MIN" default:"15"`
	SoilMax float64 `envconfig:"RANGE_HUM_SOIL_MAX" default:"35"`
	LuxMin  float64 `envconfig:"RANGE_LUX_MIN" default:"0"`
	LuxMax  float64 `envconfig:"RANGE_LUX_MAX" default:"100000"`

	TriggerTempAbove float64       `envconfig:"TRIGGER_TEMP_ABOVE" default:"30"`
	TriggerHumBelow  float64       `envconfig:"TRIGGER_HUM_AIR_BELOW" default:"30"`
	TriggerSoilBelow float64       `envconfig:"TRIGGER_HUM_SOIL_BELOW" default:"20"`
	TriggerLuxAbove  float64       `envconfig:"TRIGGER_LUX_ABOVE" default:"100000"`
	ActivityLag      time.Duration `envconfig:"ACTIVITY_LAG" default:"48h"`
	StressSoilMax    float64       `envconfig:"STRESS_SOIL_MAX" default:"20"`
	StressLuxMin     float64       `envconfig:"STRESS_LUX_MIN" default:"100000"`
	PlannerInterval  time.Duration `envconfig:"PLANNER_INTERVAL" default:"1m"`
	// 0 = dall'epoca; il default limita la scansione periodica alle
	// letture recenti.
	EvaluationWindow time.Duration `envconfig:"EVALUATION_WINDOW" default:"24h"`
}

func loadConfig() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
