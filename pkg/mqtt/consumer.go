package mqtt

import (
	"context"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processa un messaggio consegnato dal broker. Un errore trattiene
// l'ack e il messaggio verrà riconsegnato: gli errori terminali del payload
// (che una riconsegna non può sanare) vanno assorbiti ritornando nil.
type Handler func(topic string, message mqtt.Message) error

// IConsumer astrae il loop di consumo per i test.
type IConsumer interface {
	Consume(ctx context.Context)
	SetHandler(h Handler)
}

// Consumer sottoscrive un topic con QoS 1 (at-least-once) e invoca l'handler
// per ogni messaggio. Blocca finché il contesto non viene cancellato.
type Consumer struct {
	client  mqtt.Client
	topic   string
	handler Handler
}

func NewConsumer(client mqtt.Client, topic string, handler Handler) *Consumer {
	return &Consumer{client: client, topic: topic, handler: handler}
}

func (c *Consumer) SetHandler(h Handler) { c.handler = h }

func (c *Consumer) Consume(ctx context.Context) {
	token := c.client.Subscribe(c.topic, 1, func(_ mqtt.Client, message mqtt.Message) {
		if c.handler == nil {
			log.Printf("mqtt: no handler set for topic %s", c.topic)
			return
		}
		// Ack solo a elaborazione riuscita: con l'auto-ack disabilitato un
		// errore lascia il messaggio in sospeso e il broker lo riconsegna.
		if err := c.handler(c.topic, message); err != nil {
			log.Printf("mqtt: error handling message on %s: %v", c.topic, err)
			return
		}
		message.Ack()
	})
	if token.Wait() && token.Error() != nil {
		log.Printf("mqtt: error subscribing to topic %s: %v", c.topic, token.Error())
		return
	}
	log.Printf("mqtt: subscribed to topic %s", c.topic)

	<-ctx.Done()

	unsub := c.client.Unsubscribe(c.topic)
	unsub.Wait()
}
