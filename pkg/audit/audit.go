// Package audit publishes the committed ledger transactions to a message broker.
package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/marcodd23/go-micro-dbfunc/pkg/ledger"
	"github.com/marcodd23/go-micro-dbfunc/pkg/logx"
)

const (
	AttrTransaction = "transaction"
	AttrKind        = "kind"
	AttrTable       = "table"
)

// Publisher - sink of committed ledger entries.
type Publisher interface {
	// Publish sends the entries of one transaction, in order.
	Publish(ctx context.Context, transaction string, entries []ledger.Entry) error
	Close() error
}

// Client -  broker client wrapper interface.
type Client interface {
	Topic(id string) Topic
	Close() error
}

// Topic - topic wrapper interface.
type Topic interface {
	Publish(ctx context.Context, msg *Message) PublishResult
	// ResumePublish resumes publishing for an ordering key paused after a failure.
	ResumePublish(orderingKey string)
	Stop()
	String() string
}

// PublishResult - publish result wrapper interface.
type PublishResult interface {
	Get(ctx context.Context) (string, error)
}

// Message - broker message.
type Message struct {
	// MessageId - ledger entry id
	MessageId string
	// Data - JSON encoded ledger entry
	Data []byte
	// Attributes - transaction, kind and table of the entry
	Attributes map[string]string
	// OrderingKey - transaction name, entries of one transaction are delivered in order
	OrderingKey string
}

// NewEntryMessage - encode a ledger entry as a Message.
func NewEntryMessage(entry ledger.Entry) (*Message, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, NewAuditErrorCode(ErrorSerializingEntry, err)
	}

	return &Message{
		MessageId: entry.ID.String(),
		Data:      data,
		Attributes: map[string]string{
			AttrTransaction: entry.Transaction,
			AttrKind:        string(entry.Kind),
			AttrTable:       entry.Table,
		},
		OrderingKey: entry.Transaction,
	}, nil
}

// TopicPublisher - Publisher sending every entry as one message on a topic.
type TopicPublisher struct {
	mu     sync.Mutex
	client Client
	topic  Topic
	closed bool
}

// NewTopicPublisher - TopicPublisher constructor.
func NewTopicPublisher(client Client, topicID string) *TopicPublisher {
	return &TopicPublisher{client: client, topic: client.Topic(topicID)}
}

// Publish sends the entries and waits for the broker acknowledgement of each of them.
// After a failure the ordering key is resumed, so that the next commit of the same transaction
// name can be published.
func (p *TopicPublisher) Publish(ctx context.Context, transaction string, entries []ledger.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return NewAuditErrorCode(ErrorPublisherClosed, nil)
	}

	results := make([]PublishResult, 0, len(entries))

	for _, entry := range entries {
		msg, err := NewEntryMessage(entry)
		if err != nil {
			return err
		}

		results = append(results, p.topic.Publish(ctx, msg))
	}

	var firstErr error

	for i, res := range results {
		id, err := res.Get(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = NewAuditError(ErrorPublishingEntry, err, "error publishing entry %s of transaction %s",
					entries[i].ID, transaction)
			}

			continue
		}

		logx.GetLogger().LogDebug(ctx, fmt.Sprintf("Published audit entry %s of transaction %s, server id %s",
			entries[i].ID, transaction, id))
	}

	if firstErr != nil {
		p.topic.ResumePublish(transaction)
	}

	return firstErr
}

// Close - stop the topic and close the client.
func (p *TopicPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	p.topic.Stop()

	if err := p.client.Close(); err != nil {
		return NewAuditErrorCode(ErrorClosingPubsubClient, err)
	}

	return nil
}
