package mosquitto

import (
	"bytes"

	"github.com/hsiuhsiu/mosquitto-go/pkg/mosquitto/native"
)

// Message is a received MQTT message. It owns its topic and payload; nothing
// in it refers to native memory.
type Message struct {
	topic   string
	payload []byte
	qos     int
	retain  bool
	mid     int
}

// NewMessage builds a Message from a topic and payload. The payload is
// copied.
func NewMessage(topic string, payload []byte) Message {
	return Message{topic: topic, payload: bytes.Clone(payload)}
}

// messageFromView copies everything out of v. It must run before the native
// callback that produced v returns.
func messageFromView(v native.MessageView) Message {
	return Message{
		topic:   v.Topic(),
		payload: bytes.Clone(v.Payload()),
		qos:     v.QoS(),
		retain:  v.Retain(),
		mid:     v.Mid(),
	}
}

// Topic returns the topic the message was published on.
func (m Message) Topic() string { return m.topic }

// Payload returns a copy of the message body.
func (m Message) Payload() []byte { return bytes.Clone(m.payload) }

// PayloadString returns the message body as text.
func (m Message) PayloadString() string { return string(m.payload) }

func (m Message) QoS() int     { return m.qos }
func (m Message) Retain() bool { return m.retain }
func (m Message) Mid() int     { return m.mid }
