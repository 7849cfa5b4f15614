package pubsub

import (
	"context"
	"errors"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/require"

	"github.com/ministeam/ministeam-api/pkg/config"
)

func TestTopicPath(t *testing.T) {
	c := &Client{projectID: "ministeam-dev"}
	cases := map[string]string{
		"storefront":                       "projects/ministeam-dev/topics/storefront",
		"  storefront  ":                   "projects/ministeam-dev/topics/storefront",
		"projects/other/topics/storefront": "projects/other/topics/storefront",
		"":                                 "",
	}
	for in, want := range cases {
		require.Equal(t, want, c.topicPath(in), "input %q", in)
	}

	require.Empty(t, (&Client{}).topicPath("storefront"))

	var nilClient *Client
	require.Empty(t, nilClient.topicPath("storefront"))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "  "}, config.PubSubConfig{StorefrontTopic: "storefront"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)
}

func TestClientOptionsPreferInlineCredentials(t *testing.T) {
	require.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/key.json"}), 1)
	require.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/key.json"}), 1)
	require.Empty(t, clientOptions(config.GCPConfig{}))
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	err := c.Send(context.Background(), "storefront", &gcppubsub.Message{Data: []byte("{}")})
	require.True(t, errors.Is(err, errClientClosed))
	require.Error(t, c.Ping(context.Background()))
	require.NoError(t, c.Close())
}
