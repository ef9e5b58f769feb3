package main

import (
	"context"
	"encoding/hex"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	sensorSimulator "github.com/vitimonitor/vitimonitor/internal/sensor-simulator"
	"github.com/vitimonitor/vitimonitor/pkg/mqtt"
)

func main() {
	sensorID := flag.String("sensor-id", "sensor-01", "unique sensor identifier")
	zone := flag.String("zone", "A", "vineyard zone")
	interval := flag.Duration("interval", 10*time.Second, "publish interval")
	lat := flag.Float64("lat", 45.0703, "latitude")
	lon := flag.Float64("lon", 9.0127, "longitude")
	transport := flag.String("transport", "http", "transport: http or mqtt")
	backendURL := flag.String("backend-url", "http://localhost:8000", "backend base URL (http transport)")
	mqttHost := flag.String("mqtt-host", "localhost", "MQTT broker host")
	mqttPort := flag.Int("mqtt-port", 1883, "MQTT broker port")
	mqttUser := flag.String("mqtt-user", "mqtt_user", "MQTT user")
	mqttPass := flag.String("mqtt-pass", "mqtt_pwd", "MQTT password")
	mqttTopic := flag.String("mqtt-topic", "sensor/data", "MQTT publish topic")
	hmacKey := flag.String("hmac-key", "", "hex HMAC key; empty = prefix signature scheme")
	seed := flag.Int64("seed", time.Now().UnixNano(), "rng seed")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sign := sensorSimulator.Signer(sensorSimulator.PrefixSigner)
	if *hmacKey != "" {
		key, err := hex.DecodeString(*hmacKey)
		if err != nil {
			log.Fatalf("invalid hmac key: %v", err)
		}
		sign = sensorSimulator.HMACSigner(key)
	}

	gen := sensorSimulator.NewGenerator(sensorSimulator.SensorConfig{
		ID:   *sensorID,
		Zone: *zone,
		Lat:  *lat,
		Lon:  *lon,
	}, sign, *seed)

	var sender sensorSimulator.Sender
	switch *transport {
	case "mqtt":
		client, err := mqtt.NewClient(ctx, mqtt.Config{
			Host:     *mqttHost,
			Port:     *mqttPort,
			User:     *mqttUser,
			Password: *mqttPass,
			ClientID: "sensor-" + *sensorID,
		})
		if err != nil {
			log.Fatal(err)
		}
		pub := mqtt.NewPublisher(client, *mqttTopic)
		defer pub.Close()
		sender = pub
	default:
		sender = sensorSimulator.NewHTTPSender(*backendURL)
	}

	log.Printf("sensor %s (zona %s) in pubblicazione via %s ogni %s", *sensorID, *zone, *transport, *interval)
	sensorSimulator.NewSensorSimulator(gen, sender).Start(ctx, *interval)
}
