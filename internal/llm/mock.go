package llm

import (
	"context"
	"sync"
)

// Mock is a scripted generator for tests and keyless development. Replies
// are consumed in order; once the script is exhausted every call returns
// Default, which leaves the empty string unless set.
type Mock struct {
	mu      sync.Mutex
	replies []string
	err     error

	// Default is returned when no scripted reply remains.
	Default string
}

// NewMock creates a mock generator with an optional reply script.
func NewMock(replies ...string) *Mock {
	return &Mock{replies: replies}
}

// Enqueue appends replies to the script.
func (m *Mock) Enqueue(replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
}

// Fail makes every subsequent Generate call return err. Passing nil
// restores normal operation.
func (m *Mock) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Generate pops the next scripted reply.
func (m *Mock) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return m.Default, nil
	}
	next := m.replies[0]
	m.replies = m.replies[1:]
	return next, nil
}
