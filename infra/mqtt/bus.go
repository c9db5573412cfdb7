package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/vehicle"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker       string          `json:"broker"`
	ClientID     string          `json:"client_id"`
	Username     string          `json:"username"`
	Password     string          `json:"password"`
	CommandTopic string          `json:"command_topic"`
	StatusTopic  string          `json:"status_topic"`
	UseTLS       bool            `json:"use_tls"`
	ClientCert   string          `json:"client_cert"`
	ClientKey    string          `json:"client_key"`
	CABundle     string          `json:"ca_bundle"`
	AuthMethod   string          `json:"auth_method"`
	QoS          map[string]byte `json:"qos"`
	LWTTopic     string          `json:"lwt_topic"`
	LWTPayload   string          `json:"lwt_payload"`
	LWTQoS       byte            `json:"lwt_qos"`
	LWTRetain    bool            `json:"lwt_retain"`
	MaxRetries   int             `json:"max_retries"`
	BackoffMS    int             `json:"backoff_ms"`
	TLSConfig    *tls.Config     `json:"-"`
}

const (
	defaultCommandTopic = "scev/vehicle/command"
	defaultStatusTopic  = "scev/vehicle/status"
)

// pahoClient is the subset of the Paho client the bus needs; swapped out in
// tests.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Bus carries vehicle commands and status snapshots over MQTT. It implements
// the core vehicle.Bus interface.
type Bus struct {
	cli          pahoClient
	commandTopic string
	statusTopic  string
	qos          map[string]byte

	statusCh   chan vehicle.EnergyStatus
	closeOnce  sync.Once
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewBus connects to the MQTT broker and subscribes to the status topic.
func NewBus(cfg Config) (*Bus, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CommandTopic == "" {
		cfg.CommandTopic = defaultCommandTopic
	}
	if cfg.StatusTopic == "" {
		cfg.StatusTopic = defaultStatusTopic
	}

	logger := logger.New("vehicle_bus")
	b := &Bus{
		commandTopic: cfg.CommandTopic,
		statusTopic:  cfg.StatusTopic,
		qos:          cfg.QoS,
		statusCh:     make(chan vehicle.EnergyStatus, 16),
		logger:       logger,
		maxRetries:   cfg.MaxRetries,
		backoff:      time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		logger.Infof("MQTT connected")
		qos := byte(0)
		if q, ok := b.qos["status"]; ok {
			qos = q
		}
		if token := c.Subscribe(b.statusTopic, qos, b.onStatus); token.Wait() && token.Error() != nil {
			logger.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	b.cli = c
	return b, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (b *Bus) onStatus(_ paho.Client, msg paho.Message) {
	var st vehicle.EnergyStatus
	if err := json.Unmarshal(msg.Payload(), &st); err != nil {
		b.logger.Errorf("failed to decode status: %v", err)
		return
	}
	if st.Timestamp.IsZero() {
		st.Timestamp = time.Now()
	}
	select {
	case b.statusCh <- st:
	default:
		b.logger.Debugf("status channel full, snapshot dropped")
	}
}

// commandEnvelope is the wire form of one command set.
type commandEnvelope struct {
	CommandID                string  `json:"command_id"`
	EnergyShareRequestW      float64 `json:"energy_share_request_w"`
	RegenBrakingLevel        float64 `json:"regen_braking_level"`
	ThermalManagementRequest bool    `json:"thermal_management_request"`
	ChargingEnable           bool    `json:"charging_enable"`
	ChargingPowerW           float64 `json:"charging_power_w"`
	Timestamp                int64   `json:"timestamp"`
}

// SendCommands publishes one command set, retrying with exponential backoff
// until the context expires or the retry budget runs out.
func (b *Bus) SendCommands(ctx context.Context, cmds model.VehicleCommands) error {
	env := commandEnvelope{
		CommandID:                uuid.NewString(),
		EnergyShareRequestW:      cmds.EnergyShareRequestW,
		RegenBrakingLevel:        cmds.RegenBrakingLevel,
		ThermalManagementRequest: cmds.ThermalManagementRequest,
		ChargingEnable:           cmds.ChargingEnable,
		ChargingPowerW:           cmds.ChargingPowerW,
		Timestamp:                time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	qos := byte(0)
	if q, ok := b.qos["command"]; ok {
		qos = q
	}
	retries := b.maxRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := b.backoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	var publishErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		token := b.cli.Publish(b.commandTopic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			b.logger.Debugf("sent commands %s to %s", env.CommandID, b.commandTopic)
			return nil
		}
		b.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(1<<attempt)):
		}
	}
	return publishErr
}

// StatusUpdates returns the stream of decoded vehicle snapshots.
func (b *Bus) StatusUpdates() <-chan vehicle.EnergyStatus {
	return b.statusCh
}

// Close gracefully disconnects and closes the status stream.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		if b.cli != nil && b.cli.IsConnected() {
			b.cli.Disconnect(250)
		}
		close(b.statusCh)
	})
	return nil
}
