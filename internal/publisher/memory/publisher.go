// Package memory keeps artifact notifications in process memory. It backs
// dry runs and tests that assert on what a crawl announced.
package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// Message is one recorded publish.
type Message struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher implements crawler.Publisher without any transport.
type Publisher struct {
	mu   sync.Mutex
	seq  int
	msgs []Message
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish appends the payload under topic. IDs are "memory-<n>" counted from
// the last Reset.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		return "", errors.New("memory publisher: topic is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := "memory-" + strconv.Itoa(p.seq)
	p.msgs = append(p.msgs, Message{ID: id, Topic: topic, Payload: payload})
	return id, nil
}

// Messages returns a snapshot of every recorded publish in order.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.msgs...)
}

// Reset drops recorded messages and restarts the id sequence.
func (p *Publisher) Reset() {
	p.mu.Lock()
	p.msgs, p.seq = nil, 0
	p.mu.Unlock()
}
