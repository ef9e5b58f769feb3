// Package mqtt incapsula la connessione al broker e le primitive di
// publish/subscribe usate dal backend e dal simulatore.
package mqtt

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string
}

// NewClient apre la connessione al broker con retry a backoff esponenziale.
// Alla cancellazione del contesto la connessione viene chiusa.
func NewClient(ctx context.Context, cfg Config) (mqtt.Client, error) {
	addr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(addr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	// Sessione persistente + ack manuale: un messaggio QoS 1 il cui handler
	// fallisce resta non confermato e il broker lo riconsegna alla ripresa
	// della sessione. L'ack lo dà il consumer solo a elaborazione riuscita.
	opts.SetCleanSession(false)
	opts.SetAutoAckDisabled(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	const maxRetries = 5

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("mqtt: connect to %s failed: %v", addr, token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithMaxRetries(bo, maxRetries-1))
	if err != nil {
		return nil, fmt.Errorf("mqtt connection after retries: %w", err)
	}

	log.Printf("mqtt: connected to broker at %s", addr)

	go func() {
		<-ctx.Done()
		client.Disconnect(250)
		log.Println("mqtt: connection closed")
	}()

	return client, nil
}
