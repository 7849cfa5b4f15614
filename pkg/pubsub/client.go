package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ministeam/ministeam-api/pkg/config"
	"github.com/ministeam/ministeam-api/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errClientClosed      = errors.New("pubsub client not initialized")

	// ErrTopicUnavailable is returned by Send when the topic name cannot be
	// resolved or does not exist. Retrying will not help.
	ErrTopicUnavailable = errors.New("pubsub topic unavailable")
)

// Client owns the Pub/Sub connection and one publisher per topic.
type Client struct {
	client    *gcppubsub.Client
	projectID string
	topic     string

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

// NewClient connects to Pub/Sub and checks that the storefront topic exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	raw, err := gcppubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:     raw,
		projectID:  projectID,
		topic:      strings.TrimSpace(cfg.StorefrontTopic),
		publishers: make(map[string]*gcppubsub.Publisher),
	}
	if err := c.checkTopic(ctx, c.topic); err != nil {
		_ = raw.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", c.topic), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func (c *Client) checkTopic(ctx context.Context, name string) error {
	path := c.topicPath(name)
	if path == "" {
		return fmt.Errorf("%w: empty topic name", ErrTopicUnavailable)
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: path})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %s does not exist", ErrTopicUnavailable, path)
	default:
		return fmt.Errorf("checking topic %s: %w", path, err)
	}
}

// Send publishes msg to topic and blocks until the server acknowledges it.
func (c *Client) Send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub, err := c.publisherFor(topic)
	if err != nil {
		return err
	}
	if _, err := pub.Publish(ctx, msg).Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %v", ErrTopicUnavailable, err)
		}
		return err
	}
	return nil
}

func (c *Client) publisherFor(topic string) (*gcppubsub.Publisher, error) {
	if c == nil || c.client == nil {
		return nil, errClientClosed
	}
	path := c.topicPath(topic)
	if path == "" {
		return nil, fmt.Errorf("%w: empty topic name", ErrTopicUnavailable)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[path]; ok {
		return pub, nil
	}
	pub := c.client.Publisher(path)
	c.publishers[path] = pub
	return pub, nil
}

// Ping confirms the storefront topic is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errClientClosed
	}
	return c.checkTopic(ctx, c.topic)
}

// Close flushes pending publishes and releases the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for path, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, path)
	}
	c.mu.Unlock()
	return c.client.Close()
}

// topicPath expands a bare topic id to projects/<project>/topics/<id>.
func (c *Client) topicPath(name string) string {
	if c == nil {
		return ""
	}
	n := strings.TrimSpace(name)
	switch {
	case n == "":
		return ""
	case strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/"):
		return n
	case c.projectID == "":
		return ""
	default:
		return "projects/" + c.projectID + "/topics/" + n
	}
}
