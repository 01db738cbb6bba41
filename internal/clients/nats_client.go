package clients

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"twister-backend/internal/config"
	"twister-backend/internal/dto"
	"twister-backend/internal/ledger"
	"twister-backend/internal/metrics"
)

// publishFunc sends one message; JetStream or core NATS depending on config.
type publishFunc func(subject string, data []byte) error

// NATSClient publishes ledger and operation events.
type NATSClient struct {
	conn          *nats.Conn
	js            nats.JetStreamContext
	publish       publishFunc
	streamName    string
	subjectPrefix string
	network       string
	logger        *logrus.Logger
}

// NewNATSClient connects and, with JetStream enabled, makes sure the stream exists.
func NewNATSClient(cfg config.NATSConfig, network string, logger *logrus.Logger) (*NATSClient, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}
	reconnectWait := 5 * time.Second
	if cfg.ReconnectWait > 0 {
		reconnectWait = time.Duration(cfg.ReconnectWait) * time.Second
	}
	maxReconnects := -1
	if cfg.MaxReconnects > 0 {
		maxReconnects = cfg.MaxReconnects
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("twister-backend"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("[NATS] Disconnected")
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("[NATS] Reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)

	client := &NATSClient{
		conn:          conn,
		streamName:    cfg.StreamName,
		subjectPrefix: cfg.SubjectPrefix,
		network:       network,
		logger:        logger,
		publish:       conn.Publish,
	}

	if cfg.EnableJetStream {
		js, err := conn.JetStream()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
		client.js = js
		if err := client.ensureStream(); err != nil {
			conn.Close()
			return nil, err
		}
		client.publish = func(subject string, data []byte) error {
			_, err := js.Publish(subject, data)
			return err
		}
	}

	logger.WithFields(logrus.Fields{"url": cfg.URL, "jetstream": cfg.EnableJetStream}).Info("[NATS] Connected")
	return client, nil
}

// ensureStream creates the stream covering every subject under the prefix.
func (c *NATSClient) ensureStream() error {
	if _, err := c.js.StreamInfo(c.streamName); err == nil {
		return nil
	}
	_, err := c.js.AddStream(&nats.StreamConfig{
		Name:      c.streamName,
		Subjects:  []string{c.subjectPrefix + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", c.streamName, err)
	}
	c.logger.WithField("stream", c.streamName).Info("[NATS] Stream created")
	return nil
}

// LeafSubject is <prefix>.<network>.Twister.AddLeaf.
func (c *NATSClient) LeafSubject() string {
	return fmt.Sprintf("%s.%s.Twister.AddLeaf", c.subjectPrefix, c.network)
}

// OperationSubject is <prefix>.operations.<state>.
func (c *NATSClient) OperationSubject(state string) string {
	return fmt.Sprintf("%s.operations.%s", c.subjectPrefix, strings.ToLower(state))
}

// PublishLeafAdded implements ledger.LeafPublisher.
func (c *NATSClient) PublishLeafAdded(record ledger.LeafRecord) error {
	event := dto.LeafAddedEvent{
		Network:         c.network,
		Index:           record.Index,
		Commitment:      record.Commitment.Hex(),
		BlockNumber:     record.BlockNumber,
		TransactionHash: record.TransactionHash,
		LogIndex:        record.LogIndex,
	}
	if !record.Root.IsZero() {
		event.Root = record.Root.Hex()
	}
	return c.send("leaf_added", c.LeafSubject(), event)
}

// PublishOperationEvent publishes one coordinator state transition.
func (c *NATSClient) PublishOperationEvent(event dto.OperationEvent) error {
	return c.send("operation", c.OperationSubject(event.State), event)
}

func (c *NATSClient) send(eventType, subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.NATSMessagesPublished.WithLabelValues(eventType, "error").Inc()
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	if err := c.publish(subject, data); err != nil {
		metrics.NATSMessagesPublished.WithLabelValues(eventType, "error").Inc()
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	metrics.NATSMessagesPublished.WithLabelValues(eventType, "success").Inc()
	return nil
}

// Close connection
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// IsConnected reports the underlying connection state.
func (c *NATSClient) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
