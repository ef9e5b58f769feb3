package sensor_simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Sender astrae il trasporto verso il backend: MQTT (pkg/mqtt.Publisher) o
// HTTP diretto (HTTPSender sotto).
type Sender interface {
	Publish(payload []byte) error
}

// HTTPSender invia le letture con POST diretto all'endpoint di ingestione.
type HTTPSender struct {
	url    string
	client *http.Client
}

func NewHTTPSender(baseURL string) *HTTPSender {
	return &HTTPSender{
		url:    baseURL + "/data",
		client: &http.Client{Timeout: 8 * time.Second},
	}
}

func (h *HTTPSender) Publish(payload []byte) error {
	resp, err := h.client.Post(h.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// SensorSimulator pubblica a intervalli regolari le letture di un sensore.
type SensorSimulator struct {
	generator *Generator
	sender    Sender
}

func NewSensorSimulator(gen *Generator, sender Sender) *SensorSimulator {
	return &SensorSimulator{generator: gen, sender: sender}
}

// Start pubblica finché il contesto non chiude. Un errore di invio non ferma
// il loop: la lettura persa è accettabile, la prossima arriva a breve.
func (s *SensorSimulator) Start(ctx context.Context, interval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			r := s.generator.Next()
			log.Printf("sensor: pub zone=%s sensor=%s temp=%.1f hum_air=%.1f hum_soil=%.1f lux=%.0f",
				r.Zone, r.SensorID, r.Temperature, r.HumidityAir, r.HumiditySoil, r.Luminosity)
			payload, _ := json.Marshal(r)
			if err := s.sender.Publish(payload); err != nil {
				log.Printf("publish error: %v", err)
			}
		}
	}
}
