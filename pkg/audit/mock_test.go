package audit_test

import (
	"context"
	"sync"

	"github.com/marcodd23/go-micro-dbfunc/pkg/audit"
)

// MockClient - audit.Client mock.
type MockClient struct {
	topics   map[string]audit.Topic
	closed   bool
	closeErr error
}

func (m *MockClient) Topic(id string) audit.Topic {
	return m.topics[id]
}

func (m *MockClient) Close() error {
	m.closed = true
	return m.closeErr
}

// MockTopic - audit.Topic mock recording the published messages.
type MockTopic struct {
	mu          sync.Mutex
	id          string
	published   []*audit.Message
	resumed     []string
	stopped     bool
	publishFunc func(ctx context.Context, msg *audit.Message) audit.PublishResult
}

func (m *MockTopic) Publish(ctx context.Context, msg *audit.Message) audit.PublishResult {
	m.mu.Lock()
	m.published = append(m.published, msg)
	m.mu.Unlock()

	if m.publishFunc != nil {
		return m.publishFunc(ctx, msg)
	}

	return MockPublishResult{getFunc: func(ctx context.Context) (string, error) {
		return "server-" + msg.MessageId, nil
	}}
}

func (m *MockTopic) ResumePublish(orderingKey string) {
	m.resumed = append(m.resumed, orderingKey)
}

func (m *MockTopic) Stop() {
	m.stopped = true
}

func (m *MockTopic) String() string {
	return m.id
}

// MockPublishResult - audit.PublishResult mock.
type MockPublishResult struct {
	getFunc func(ctx context.Context) (string, error)
}

func (m MockPublishResult) Get(ctx context.Context) (string, error) {
	return m.getFunc(ctx)
}
