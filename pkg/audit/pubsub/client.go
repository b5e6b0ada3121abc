package pubsub

import (
	"context"

	"cloud.google.com/go/pubsub"
	"github.com/marcodd23/go-micro-dbfunc/pkg/audit"
)

// pubSubClient - audit.Client implementation for PubSub.
type pubSubClient struct {
	client *pubsub.Client
}

func (w *pubSubClient) Topic(id string) audit.Topic {
	realTopic := w.client.Topic(id)
	// entries of one transaction share the ordering key
	realTopic.EnableMessageOrdering = true

	return &pubSubTopic{topic: realTopic}
}

func (w *pubSubClient) Close() error {
	return w.client.Close()
}

// pubSubTopic - audit.Topic implementation for PubSub.
type pubSubTopic struct {
	topic *pubsub.Topic
}

func (w *pubSubTopic) Publish(ctx context.Context, msg *audit.Message) audit.PublishResult {
	pubSubMessage := &pubsub.Message{
		Attributes:  msg.Attributes,
		Data:        msg.Data,
		OrderingKey: msg.OrderingKey,
	}

	return pubSubPublishResult{publishResult: w.topic.Publish(ctx, pubSubMessage)}
}

func (w *pubSubTopic) ResumePublish(orderingKey string) {
	w.topic.ResumePublish(orderingKey)
}

func (w *pubSubTopic) Stop() {
	w.topic.Stop()
}

func (w *pubSubTopic) String() string {
	return w.topic.String()
}

// pubSubPublishResult - audit.PublishResult implementation for PubSub.
type pubSubPublishResult struct {
	publishResult *pubsub.PublishResult
}

func (prw pubSubPublishResult) Get(ctx context.Context) (string, error) {
	return prw.publishResult.Get(ctx)
}
