package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/monitoring"
	coremqtt "github.com/farreladriann/slc-backend/core/mqtt"
	"github.com/farreladriann/slc-backend/infra/logger"
)

const (
	DefaultUpstreamTopic   = "stm32/data/upstream"
	DefaultDownstreamTopic = "stm32/data/downstream"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker          string          `json:"broker"`
	ClientID        string          `json:"client_id"`
	Username        string          `json:"username"`
	Password        string          `json:"password"`
	UpstreamTopic   string          `json:"upstream_topic"`
	DownstreamTopic string          `json:"downstream_topic"`
	UseTLS          bool            `json:"use_tls"`
	ClientCert      string          `json:"client_cert"`
	ClientKey       string          `json:"client_key"`
	CABundle        string          `json:"ca_bundle"`
	AuthMethod      string          `json:"auth_method"`
	QoS             map[string]byte `json:"qos"`
	LWTTopic        string          `json:"lwt_topic"`
	LWTPayload      string          `json:"lwt_payload"`
	LWTQoS          byte            `json:"lwt_qos"`
	LWTRetain       bool            `json:"lwt_retain"`
	MaxRetries      int             `json:"max_retries"`
	BackoffMS       int             `json:"backoff_ms"`
	TLSConfig       *tls.Config     `json:"-"`
}

// SetDefaults fills the topics, client id and QoS levels.
func (c *Config) SetDefaults() {
	if c.Broker == "" {
		c.Broker = "tcp://localhost:1883"
	}
	if c.ClientID == "" {
		c.ClientID = "slc-backend-" + uuid.NewString()[:8]
	}
	if c.UpstreamTopic == "" {
		c.UpstreamTopic = DefaultUpstreamTopic
	}
	if c.DownstreamTopic == "" {
		c.DownstreamTopic = DefaultDownstreamTopic
	}
	if c.QoS == nil {
		c.QoS = map[string]byte{}
	}
	for _, k := range []string{"command", "upstream"} {
		if _, ok := c.QoS[k]; !ok {
			c.QoS[k] = 1
		}
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	for k, q := range c.QoS {
		if q > 2 {
			return fmt.Errorf("mqtt qos %s must be 0, 1 or 2", k)
		}
	}
	return nil
}

func (c Config) qos(key string) byte {
	if q, ok := c.QoS[key]; ok {
		return q
	}
	return 1
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Handler receives the payload of a subscribed topic.
type Handler func(topic string, payload []byte)

type subscription struct {
	qos     byte
	handler Handler
}

// PahoClient publishes relay commands and dispatches upstream messages using
// Eclipse Paho. It implements coremqtt.Publisher.
type PahoClient struct {
	cli        pahoClient
	cfg        Config
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
	seq        atomic.Uint32

	mu   sync.Mutex
	subs map[string]subscription
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

var _ coremqtt.Publisher = (*PahoClient)(nil)

// NewPahoClient connects to the MQTT broker. Subscriptions registered with
// Subscribe are restored on every reconnect.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		cfg:        cfg,
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		subs:       make(map[string]subscription),
	}
	if pc.maxRetries < 0 {
		pc.maxRetries = 0
	}
	if pc.backoff <= 0 {
		pc.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected: %s", cfg.Broker)
		pc.resubscribe(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	pc.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(3 * time.Second)
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

// Config returns the effective configuration.
func (p *PahoClient) Config() Config { return p.cfg }

// Subscribe registers h for topic. The subscription is sent immediately when
// connected and again after every reconnect.
func (p *PahoClient) Subscribe(topic string, qos byte, h Handler) error {
	p.mu.Lock()
	p.subs[topic] = subscription{qos: qos, handler: h}
	p.mu.Unlock()
	if !p.cli.IsConnected() {
		return nil
	}
	token := p.cli.Subscribe(topic, qos, wrap(h))
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	p.logger.Infof("subscribed to %s", topic)
	return nil
}

func (p *PahoClient) resubscribe(c paho.Client) {
	p.mu.Lock()
	subs := make(map[string]subscription, len(p.subs))
	for k, v := range p.subs {
		subs[k] = v
	}
	p.mu.Unlock()
	for topic, s := range subs {
		if token := c.Subscribe(topic, s.qos, wrap(s.handler)); token.Wait() && token.Error() != nil {
			p.logger.Errorf("subscribe error: %v", token.Error())
		}
	}
}

func wrap(h Handler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		h(msg.Topic(), msg.Payload())
	}
}

// PublishCommand sends cmd to the downstream topic. It fails fast with
// coremqtt.ErrNotConnected and returns coremqtt.ErrPublishTimeout when the
// broker does not confirm before ctx is done. Broker errors are retried with
// exponential backoff up to MaxRetries times.
func (p *PahoClient) PublishCommand(ctx context.Context, cmd model.Command) error {
	if !p.cli.IsConnected() {
		return coremqtt.ErrNotConnected
	}
	seq := int(p.seq.Add(1) % 1000)
	payload, err := json.Marshal(NewCommandPayload(cmd, seq, uuid.NewString()))
	if err != nil {
		return err
	}
	topic := p.cfg.DownstreamTopic
	qos := p.cfg.qos("command")

	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		publishErr = wait(ctx, p.cli.Publish(topic, qos, false, payload))
		if publishErr == nil {
			p.logger.Debugf("published %s to %s", payload, topic)
			return nil
		}
		if errors.Is(publishErr, coremqtt.ErrPublishTimeout) {
			break
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.maxRetries {
			select {
			case <-time.After(p.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				publishErr = fmt.Errorf("%w: %v", coremqtt.ErrPublishTimeout, ctx.Err())
				attempt = p.maxRetries
			}
		}
	}
	monitoring.CaptureException(publishErr, map[string]string{"terminal_id": cmd.TerminalID, "module": "mqtt"})
	return publishErr
}

func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", coremqtt.ErrPublishTimeout, ctx.Err())
	}
}

// Connected reports whether the broker connection is up.
func (p *PahoClient) Connected() bool {
	return p.cli != nil && p.cli.IsConnected()
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
