/*
 * Copyright 2025 SmartPark Systems.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package mqtt bridges occupancy telemetry onto an MQTT broker. The bridge
// is best-effort: the authoritative delivery path is the HTTP sender, so
// publish failures here are logged and forgotten.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/smartpark/parkedge/pkg/logger"
	"github.com/smartpark/parkedge/pkg/models"
)

const (
	defaultSite       = "fass"
	disconnectQuiesce = 250 // milliseconds
	keepAlive         = 60 * time.Second
	pingTimeout       = 10 * time.Second
)

// Config controls broker connectivity and the topic namespace. An empty
// broker disables the bridge entirely.
type Config struct {
	Broker   string `json:"broker,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Site     string `json:"site"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.Site == "" {
		c.Site = defaultSite
	}

	return nil
}

// Enabled reports whether a broker is configured.
func (c *Config) Enabled() bool {
	return c.Broker != ""
}

// ConfigCallback receives configuration-update messages from the broker.
type ConfigCallback func(payload json.RawMessage)

// Publisher is the MQTT telemetry bridge for one edge node. A nil Publisher
// is valid and publishes nothing, so callers need no broker to run.
type Publisher struct {
	client         pahomqtt.Client
	nodeID         string
	site           string
	logger         zerolog.Logger
	configCallback ConfigCallback
}

// NewPublisher connects to the broker and returns the bridge.
func NewPublisher(config Config, nodeID string, log logger.Logger) (*Publisher, error) {
	l := log.WithComponent("mqtt")

	p := &Publisher{
		nodeID: nodeID,
		site:   config.Site,
		logger: l,
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(fmt.Sprintf("smartpark-%s", nodeID)).
		SetUsername(config.Username).
		SetPassword(config.Password).
		SetAutoReconnect(true).
		SetKeepAlive(keepAlive).
		SetPingTimeout(pingTimeout).
		SetOnConnectHandler(func(client pahomqtt.Client) {
			l.Info().Str("broker", config.Broker).Msg("Connected to MQTT broker")
			p.subscribeConfig(client)
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			l.Warn().Err(err).Msg("Disconnected from MQTT broker")
		})

	client := pahomqtt.NewClient(opts)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	p.client = client

	return p, nil
}

func (p *Publisher) topic(suffix string) string {
	return fmt.Sprintf("su/parking/%s/%s", p.site, suffix)
}

func (p *Publisher) subscribeConfig(client pahomqtt.Client) {
	topic := p.topic("config")

	token := client.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		p.logger.Info().Str("topic", msg.Topic()).Msg("Received config update")

		if p.configCallback != nil {
			p.configCallback(json.RawMessage(msg.Payload()))
		}
	})

	if token.Wait() && token.Error() != nil {
		p.logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to config topic")
	}
}

// SetConfigCallback registers the handler for config-update messages.
// Register before Connect delivers the first message.
func (p *Publisher) SetConfigCallback(cb ConfigCallback) {
	if p == nil {
		return
	}

	p.configCallback = cb
}

func (p *Publisher) publish(topic string, qos byte, payload interface{}) {
	if p == nil || p.client == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Msg("Failed to marshal MQTT payload")
		return
	}

	p.client.Publish(topic, qos, false, data)
}

type slotStatePayload struct {
	NodeID string `json:"node_id"`
	models.StateChangeEvent
}

// PublishSlotState publishes one confirmed transition, qos 1.
func (p *Publisher) PublishSlotState(event models.StateChangeEvent) {
	if p == nil {
		return
	}

	p.publish(p.topic(fmt.Sprintf("slot/%s/state", event.SlotID)), 1, slotStatePayload{
		NodeID:           p.nodeID,
		StateChangeEvent: event,
	})
}

type summaryPayload struct {
	NodeID string `json:"node_id"`
	models.LotSummary
}

// PublishSummary publishes the lot summary, qos 0.
func (p *Publisher) PublishSummary(summary models.LotSummary) {
	if p == nil {
		return
	}

	p.publish(p.topic("summary"), 0, summaryPayload{NodeID: p.nodeID, LotSummary: summary})
}

// PublishHealth publishes one health report, qos 0.
func (p *Publisher) PublishHealth(report models.HealthReport) {
	if p == nil {
		return
	}

	p.publish(p.topic("node_health"), 0, report)
}

type inferenceStatsPayload struct {
	NodeID string `json:"node_id"`
	models.NodeStats
}

// PublishInferenceStats publishes running inference statistics, qos 0.
func (p *Publisher) PublishInferenceStats(stats models.NodeStats) {
	if p == nil {
		return
	}

	p.publish(p.topic("inference_stats"), 0, inferenceStatsPayload{NodeID: p.nodeID, NodeStats: stats})
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}

	p.client.Disconnect(disconnectQuiesce)
	p.logger.Info().Msg("MQTT bridge closed")
}
