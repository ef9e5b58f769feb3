package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/vitimonitor/vitimonitor/internal/ingest"
	"github.com/vitimonitor/vitimonitor/internal/storage"
	"github.com/vitimonitor/vitimonitor/pkg/mqtt"
)

// MessageHandler ritorna l'handler per il consumer MQTT. Con QoS 1 il broker
// può riconsegnare: dedupe sull'hash del payload, marcato solo dopo ingestione
// riuscita, così un guasto dello store lascia il messaggio ritentabile.
func (s *Service) MessageHandler(ctx context.Context) mqtt.Handler {
	return func(topic string, msg pahomqtt.Message) error {
		sum := sha256.Sum256(msg.Payload())
		key := hex.EncodeToString(sum[:])
		if s.deduper.Seen(key) {
			log.Printf("backend: duplicate message on %s, skipped", topic)
			return nil
		}

		ictx := ingest.WithTransport(ctx, "mqtt")
		_, err := s.pipeline.Ingest(ictx, msg.Payload(), false)
		switch {
		case err == nil:
			s.deduper.Mark(key)
			return nil
		case errors.Is(err, ingest.ErrMalformedPayload),
			errors.Is(err, ingest.ErrInvalidSignature):
			// Errore terminale del mittente: riconsegnare non aiuta.
			log.Printf("backend: dropping message on %s: %v", topic, err)
			s.deduper.Mark(key)
			return nil
		case errors.Is(err, storage.ErrUnavailable):
			// Non marcare e non confermare: il consumer trattiene l'ack e
			// il broker riconsegna il messaggio alla ripresa della sessione.
			return err
		default:
			return err
		}
	}
}
