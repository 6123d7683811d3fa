package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"emotion-cam-go/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Log-Felder für die MQTT-Komponente
var logFields = log.Fields{
	"component": "mqtt",
}

// Client ist der MQTT-Client für Ergebnisse, Sitzungen und Steuerbefehle
type Client struct {
	config   config.MQTTConfig
	client   mqtt.Client
	mu       sync.RWMutex
	handlers []MessageHandler
}

// MessageHandler verarbeitet Nachrichten auf dem Befehls-Topic
type MessageHandler interface {
	HandleMessage(topic string, payload []byte)
}

// NewClient erstellt einen neuen MQTT-Client
func NewClient(cfg config.MQTTConfig) *Client {
	return &Client{
		config:   cfg,
		handlers: make([]MessageHandler, 0),
	}
}

// Topic bildet ein Untertopic des konfigurierten Basis-Topics
func (c *Client) Topic(suffix string) string {
	return topicFor(c.config.Topic, suffix)
}

func topicFor(base, suffix string) string {
	if base == "" {
		base = "emotion-cam"
	}
	return base + "/" + suffix
}

// RegisterHandler registriert einen neuen MessageHandler
func (c *Client) RegisterHandler(handler MessageHandler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, handler)
	c.mu.Unlock()
	log.WithFields(logFields).Debug("Registered new MQTT message handler")
}

// Start verbindet den Client mit dem Broker. Bei deaktiviertem MQTT passiert nichts.
func (c *Client) Start() error {
	if !c.config.Enabled {
		log.WithFields(logFields).Info("MQTT client is disabled in configuration")
		return nil
	}

	opts := mqtt.NewClientOptions()
	brokerURL := fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(c.config.ClientID)

	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	// Verfügbarkeit über Last Will
	opts.SetWill(c.Topic("status"), "offline", 1, true)
	opts.SetOnConnectHandler(c.onConnectHandler)
	opts.SetConnectionLostHandler(c.connectionLostHandler)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	c.client = mqtt.NewClient(opts)

	log.WithFields(logFields).Infof("Connecting to MQTT broker at %s", brokerURL)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.WithFields(logFields).Info("MQTT client connected successfully")
	return nil
}

// Stop meldet den Dienst ab und trennt die Verbindung
func (c *Client) Stop() {
	if c.IsConnected() {
		log.WithFields(logFields).Info("Disconnecting MQTT client...")
		c.client.Publish(c.Topic("status"), 1, true, "offline").WaitTimeout(time.Second)
		c.client.Disconnect(250)
		log.WithFields(logFields).Info("MQTT client disconnected")
	}
}

// IsConnected prüft, ob der Client verbunden ist
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

func (c *Client) onConnectHandler(client mqtt.Client) {
	log.WithFields(logFields).Infof("Connected to MQTT broker at %s:%d", c.config.Broker, c.config.Port)
	client.Publish(c.Topic("status"), 1, true, "online")

	topic := c.Topic("command")
	if token := client.Subscribe(topic, 1, c.messageHandler); token.Wait() && token.Error() != nil {
		log.WithFields(logFields).Errorf("Failed to subscribe to topic %s: %v", topic, token.Error())
	} else {
		log.WithFields(logFields).Infof("Subscribed to command topic: %s", topic)
	}
}

func (c *Client) connectionLostHandler(client mqtt.Client, err error) {
	log.WithFields(logFields).Errorf("MQTT connection lost: %v", err)
}

func (c *Client) messageHandler(client mqtt.Client, msg mqtt.Message) {
	log.WithFields(logFields).Debugf("Received MQTT message on topic: %s", msg.Topic())

	c.mu.RLock()
	handlers := append([]MessageHandler(nil), c.handlers...)
	c.mu.RUnlock()

	for _, handler := range handlers {
		go handler.HandleMessage(msg.Topic(), msg.Payload())
	}
}

// encodePayload wandelt Strings, Bytes und Zahlen direkt um, alles andere als JSON
func encodePayload(payload interface{}) ([]byte, error) {
	switch p := payload.(type) {
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return []byte(fmt.Sprintf("%v", p)), nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload to JSON: %w", err)
		}
		return data, nil
	}
}

// PublishMessage veröffentlicht eine Nachricht an ein MQTT-Topic
func (c *Client) PublishMessage(topic string, payload interface{}, retain bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}

	data, err := encodePayload(payload)
	if err != nil {
		return err
	}

	token := c.client.Publish(topic, 1, retain, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, token.Error())
	}

	log.WithFields(logFields).Tracef("Published message to topic: %s", topic)
	return nil
}
