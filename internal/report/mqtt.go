package report

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/user/classwatch/internal/types"
)

// MQTTSink mirrors engagement events to an MQTT topic for sites that feed a
// separate telemetry pipeline alongside the backend.
type MQTTSink struct {
	client mqtt.Client
	topic  string
}

// NewMQTTSink connects to the broker and returns a sink publishing to topic.
func NewMQTTSink(broker, clientID, topic string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker: %w", token.Error())
	}
	return &MQTTSink{client: client, topic: topic}, nil
}

// Emit publishes the event as JSON. Fire-and-forget at QoS 0; a lost mirror
// event is acceptable.
func (s *MQTTSink) Emit(_ context.Context, event *types.EngagementEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	token := s.client.Publish(s.topic, 0, false, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish event: %w", token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
}
