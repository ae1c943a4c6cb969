package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/angelmondragon/qrcatalog-backend/pkg/config"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub orders topic is required")
	// ErrTopicNotFound is returned at startup and from Ping when the orders topic is gone.
	ErrTopicNotFound = errors.New("pubsub topic does not exist")
)

// Client owns the Pub/Sub connection and the single publisher for order events.
// PUBSUB_EMULATOR_HOST is honoured by the underlying client for local runs.
type Client struct {
	client *pubsub.Client
	topic  string
	orders *pubsub.Publisher
}

// NewClient connects, checks the orders topic exists and prepares an ordered publisher.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if !cfg.Enabled() {
		return nil, errNoTopic
	}
	topic := TopicResourceName(gcp.ProjectID, cfg.OrdersTopic)

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, topic: topic}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	c.orders = psClient.Publisher(topic)
	c.orders.EnableMessageOrdering = true

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub client initialized")
	}
	return c, nil
}

// OrderEvents wraps the orders publisher for the fan-out engine.
func (c *Client) OrderEvents() (*EventPublisher, error) {
	if c == nil || c.orders == nil {
		return nil, errors.New("pubsub client not initialized")
	}
	return NewEventPublisher(c.orders)
}

// Ping looks the orders topic up through the admin API.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %s", ErrTopicNotFound, c.topic)
	case err != nil:
		return fmt.Errorf("checking topic %s: %w", c.topic, err)
	}
	return nil
}

// Close flushes pending order events before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.orders != nil {
		c.orders.Stop()
	}
	return c.client.Close()
}

// TopicResourceName expands a topic ID into projects/{p}/topics/{id}; full names pass through.
func TopicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/topics/%s", p, n)
}
