package mqtt

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/victor-fedorov-wb/ha-monitor/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for a connection handshake.
	defaultConnectTimeout = 10 * time.Second

	// defaultSubscribeTimeout is the maximum time to wait for a SUBACK.
	defaultSubscribeTimeout = 5 * time.Second

	// defaultPingTimeout is how long to wait for a PINGRESP before declaring the session lost.
	defaultPingTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// subackFailure is the SUBACK return code for a rejected subscription.
	subackFailure = 0x80

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// brokerURL validates the broker address and returns it in paho's URL form.
func brokerURL(cfg config.MQTTBrokerConfig) (string, error) {
	if cfg.Host == "" {
		return "", fmt.Errorf("%w: broker host is empty", ErrInvalidConfig)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return "", fmt.Errorf("%w: broker port %d out of range", ErrInvalidConfig, cfg.Port)
	}

	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	raw := fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if u.Hostname() != cfg.Host || u.Path != "" {
		return "", fmt.Errorf("%w: malformed broker host %q", ErrInvalidConfig, cfg.Host)
	}

	return raw, nil
}

// buildClientOptions creates paho MQTT options for one session attempt.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Keep-alive so a dead transport is detected
//   - In-order message delivery
//
// paho's own reconnect logic is switched off: the Manager owns the
// reconnect loop so each attempt and its backoff is visible in the log.
func buildClientOptions(cfg config.MQTTConfig, broker string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(broker)

	// Client identification
	opts.SetClientID(cfg.Broker.ClientID)

	// Authentication (if credentials provided)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// No broker-side session: the subscription is re-issued on every connect
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(cfg.GetKeepAlive())
	opts.SetPingTimeout(defaultPingTimeout)

	// Handlers run one at a time, in the order the broker delivered the messages
	opts.SetOrderMatters(true)

	// TLS configuration if enabled
	if cfg.Broker.TLS {
		tlsConfig := &tls.Config{
			MinVersion: tlsMinVersion,
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts
}
