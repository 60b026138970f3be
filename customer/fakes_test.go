package customer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zllovesuki/custbridge/crm"
)

type memStore struct {
	mu          sync.Mutex
	items       []Customer
	listErr     error
	insertErr   error
	listCalls   int
	insertCalls int
}

func (m *memStore) List(ctx context.Context) ([]Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]Customer(nil), m.items...), nil
}

func (m *memStore) Insert(ctx context.Context, c *Customer) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.insertErr != nil {
		return "", m.insertErr
	}
	c.ID = fmt.Sprintf("cust-%d", len(m.items)+1)
	c.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.items = append(m.items, *c)
	return c.ID, nil
}

type fakeContacts struct {
	mu          sync.Mutex
	created     []crm.Contact
	createErr   error
	listBody    []byte
	listErr     error
	createCalls int
	listCalls   int
}

func (f *fakeContacts) CreateContact(ctx context.Context, contact crm.Contact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, contact)
	return fmt.Sprintf("003%d", len(f.created)), nil
}

func (f *fakeContacts) ListContacts(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listBody, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []CreatedEvent
	err    error
}

func (f *fakePublisher) PublishCustomerCreated(ctx context.Context, e CreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}
