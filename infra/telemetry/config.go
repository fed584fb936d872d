package telemetry

// Config controls upstream ingest.
type Config struct {
	Enabled *bool `json:"enabled"`
	// Topic defaults to the MQTT upstream topic.
	Topic string `json:"topic"`
	QoS   *byte  `json:"qos"`
	// StoreTimeoutSeconds bounds the store writes of one message.
	StoreTimeoutSeconds int `json:"store_timeout_seconds"`
}

// IsEnabled reports whether ingest runs. It is on unless disabled explicitly.
func (c Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c Config) qos() byte {
	if c.QoS == nil {
		return 1
	}
	return *c.QoS
}
