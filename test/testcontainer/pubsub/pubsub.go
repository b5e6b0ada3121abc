package pubsub

import (
	"context"
	"fmt"
	"os"
	"testing"

	"cloud.google.com/go/pubsub"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	pubSubEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:latest"
	pubSubEmulatorPort  = "8085/tcp"
	pubSubEmulatorHost  = "PUBSUB_EMULATOR_HOST"
)

// PubsubContainer represents the cloud_pubsub container type used in the module.
type PubsubContainer struct {
	Container testcontainers.Container
	URI       string
	client    *pubsub.Client
	projectId string
}

// StartPubSubContainer - startContainer creates an instance of the cloud_pubsub container type.
func StartPubSubContainer(ctx context.Context, projectId string) (*PubsubContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        pubSubEmulatorImage,
		ExposedPorts: []string{pubSubEmulatorPort},
		WaitingFor:   wait.ForLog("started"),
		Cmd: []string{
			"/bin/sh",
			"-c",
			"gcloud beta emulators pubsub start --host-port 0.0.0.0:8085",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, err
	}

	mappedPort, err := container.MappedPort(ctx, "8085")
	if err != nil {
		return nil, err
	}

	hostIP, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}

	uri := fmt.Sprintf("%s:%s", hostIP, mappedPort.Port())

	os.Setenv(pubSubEmulatorHost, uri)

	return &PubsubContainer{Container: container, URI: uri, projectId: projectId}, nil
}

func (c *PubsubContainer) StopContainer(ctx context.Context) error {
	os.Unsetenv(pubSubEmulatorHost)

	if c.client != nil {
		_ = c.client.Close()
	}

	return c.Container.Terminate(ctx)
}

func (c *PubsubContainer) CreateConnectionOptions(t *testing.T) []option.ClientOption {
	conn, err := grpc.Dial(c.URI, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}

	return []option.ClientOption{option.WithGRPCConn(conn)}
}

func (c *PubsubContainer) getClient(ctx context.Context, t *testing.T) *pubsub.Client {
	if c.client == nil {
		client, err := pubsub.NewClient(ctx, c.projectId, c.CreateConnectionOptions(t)...)
		if err != nil {
			t.Fatal(err)
		}

		c.client = client
	}

	return c.client
}

func (c *PubsubContainer) CreateTopic(ctx context.Context, t *testing.T, topicName string) *pubsub.Topic {
	t.Helper()

	topic, err := c.getClient(ctx, t).CreateTopic(ctx, topicName)
	if err != nil {
		t.Fatal(err)
	}

	return topic
}

// CreateOrderedSubscription - subscription on topicName delivering messages in ordering key order.
func (c *PubsubContainer) CreateOrderedSubscription(ctx context.Context, t *testing.T, topicName string, subscriptionName string) *pubsub.Subscription {
	t.Helper()

	client := c.getClient(ctx, t)

	subscription, err := client.CreateSubscription(ctx, subscriptionName, pubsub.SubscriptionConfig{
		Topic:                 client.Topic(topicName),
		EnableMessageOrdering: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	return subscription
}
