package pubsub

import (
	"context"

	"cloud.google.com/go/pubsub"
	"github.com/marcodd23/go-micro-dbfunc/pkg/audit"
	"google.golang.org/api/option"
)

// NewPubSubAuditPublisherFactory - factory that create a cloud_pubsub client and then initialize an audit publisher
// on the given topic.
func NewPubSubAuditPublisherFactory(
	ctx context.Context,
	projectID string,
	topicID string,
	opts ...option.ClientOption) (*audit.TopicPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, audit.NewAuditErrorCode(audit.ErrorInitializingPubsubClient, err)
	}

	return audit.NewTopicPublisher(&pubSubClient{client: client}, topicID), nil
}
