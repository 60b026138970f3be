package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/zllovesuki/custbridge/customer"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// MirrorAuditQueue is the durable queue the audit task consumes from
const MirrorAuditQueue = "crm_mirror_audit"

// EventConsumer delivers customer.created events from a named queue
type EventConsumer interface {
	ReceiveCustomerCreated(ctx context.Context, qName string) (<-chan *customer.CreatedEvent, error)
}

type AuditOptions struct {
	Consumer EventConsumer
	Logger   *zap.Logger
}

// AuditTask tallies the CRM mirror outcome of every created customer and
// reports the ones that only exist locally, so they can be reconciled by hand.
type AuditTask struct {
	AuditOptions

	mu     sync.Mutex
	counts map[customer.MirrorStatus]int
}

func NewAuditTask(option AuditOptions) (*AuditTask, error) {
	if option.Consumer == nil {
		return nil, fmt.Errorf("nil Consumer is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &AuditTask{
		AuditOptions: option,
		counts:       make(map[customer.MirrorStatus]int),
	}, nil
}

// Record accounts for a single event
func (t *AuditTask) Record(e *customer.CreatedEvent) {
	if e == nil {
		return
	}
	t.mu.Lock()
	t.counts[e.Mirror]++
	t.mu.Unlock()

	if e.Mirror == customer.MirrorFailed {
		t.Logger.Error("Customer is missing from CRM",
			zap.String("CustomerID", e.ID),
			zap.String("email", e.Email),
			zap.Time("createdAt", e.CreatedAt),
		)
	}
}

// Stats returns a copy of the per-status tally
func (t *AuditTask) Stats() map[customer.MirrorStatus]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := make(map[customer.MirrorStatus]int, len(t.counts))
	for k, v := range t.counts {
		stats[k] = v
	}
	return stats
}

func (t *AuditTask) handleEvents(ctx context.Context, eChan <-chan *customer.CreatedEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-eChan:
			if !ok {
				t.Logger.Warn("Customer event channel closed",
					zap.Any("stats", t.Stats()),
				)
				return
			}
			t.Record(e)
		}
	}
}

// HandleEvents starts consuming customer events in the background
func (t *AuditTask) HandleEvents(ctx context.Context) error {
	eChan, err := t.Consumer.ReceiveCustomerCreated(ctx, MirrorAuditQueue)
	if err != nil {
		return extErrors.Wrap(err, "Cannot get customer event channel")
	}
	go t.handleEvents(ctx, eChan)
	return nil
}
