// Package bridge forwards recognition events to a message broker.
package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hipsterbrown/simplevr/simplevr"
)

// Publisher delivers one message to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Event is the JSON document published for each recognition.
type Event struct {
	Index uint16    `json:"index"`
	Group byte      `json:"group"`
	Score byte      `json:"score"`
	Time  time.Time `json:"time"`
}

// Bridge publishes recognitions as Events.
type Bridge struct {
	pub   Publisher
	topic string
	log   *zap.Logger
	now   func() time.Time
}

// New creates a bridge publishing to topic. A nil logger disables logging.
func New(pub Publisher, topic string, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		pub:   pub,
		topic: topic,
		log:   log,
		now:   time.Now,
	}
}

// Handle publishes r. It has the signature expected by simplevr.Driver.Listen.
func (b *Bridge) Handle(r simplevr.Recognition) error {
	payload, err := json.Marshal(Event{
		Index: r.Index,
		Group: r.Group,
		Score: r.Score,
		Time:  b.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	if err := b.pub.Publish(b.topic, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", b.topic, err)
	}
	b.log.Info("recognition published",
		zap.String("topic", b.topic),
		zap.Uint16("index", r.Index),
		zap.Uint8("group", r.Group),
		zap.Uint8("score", r.Score))
	return nil
}
