package customer

import (
	"context"
	"fmt"
	"strings"

	"github.com/zllovesuki/custbridge/crm"

	"go.uber.org/zap"
)

// ContactClient is the CRM side used for mirroring. *crm.Client satisfies it.
type ContactClient interface {
	CreateContact(ctx context.Context, contact crm.Contact) (string, error)
	ListContacts(ctx context.Context) ([]byte, error)
}

// EventPublisher announces newly created customers
type EventPublisher interface {
	PublishCustomerCreated(ctx context.Context, e CreatedEvent) error
}

// MirrorStatus describes what happened to the CRM copy of a new customer
type MirrorStatus string

// define constants
const (
	MirrorSynced   MirrorStatus = "synced"
	MirrorFailed   MirrorStatus = "failed"
	MirrorDisabled MirrorStatus = "disabled"
)

// Source selects where customers are listed from
type Source string

// define constants
const (
	SourceLocal Source = "local"
	SourceCRM   Source = "crm"
)

// ParseSource maps the source query parameter to a Source. Empty means local.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(s) {
	case "", "local", "db":
		return SourceLocal, nil
	case "sf", "salesforce", "crm":
		return SourceCRM, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// CreatedEvent is published after a customer is stored
type CreatedEvent struct {
	Customer
	Mirror MirrorStatus `json:"mirror"`
}

// CreateResult tells apart a fully synced write from one that was stored
// locally but could not be mirrored
type CreateResult struct {
	Customer    *Customer
	Mirror      MirrorStatus
	ContactID   string
	MirrorError error
}

// ListResult holds either local Customers or the CRM's raw response
type ListResult struct {
	Source    Source
	Customers []Customer
	Raw       []byte
}

// SyncerOptions contains the configuration for Syncer. Contacts and
// Publisher are optional.
type SyncerOptions struct {
	Store     Store
	Contacts  ContactClient
	Publisher EventPublisher
	Logger    *zap.Logger
}

// Syncer writes customers to the Store and mirrors them to the CRM
type Syncer struct {
	SyncerOptions
}

// NewSyncer returns a new Syncer
func NewSyncer(option SyncerOptions) (*Syncer, error) {
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Syncer{
		SyncerOptions: option,
	}, nil
}

// Create validates and stores c, then mirrors it to the CRM. A failed mirror
// does not undo the local write; it is reported in the result instead.
func (s *Syncer) Create(ctx context.Context, c *Customer) (*CreateResult, error) {
	if err := Validate(c); err != nil {
		return nil, err
	}

	logger := s.Logger.With(zap.String("email", c.Email))

	if _, err := s.Store.Insert(ctx, c); err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("CustomerID", c.ID))

	result := &CreateResult{
		Customer: c,
		Mirror:   MirrorDisabled,
	}

	if s.Contacts != nil {
		contactID, err := s.Contacts.CreateContact(ctx, crm.NewContact(c.Name, c.Email, c.Phone))
		if err != nil {
			logger.Error("Unable to mirror customer to CRM",
				zap.Error(err),
			)
			result.Mirror = MirrorFailed
			result.MirrorError = err
		} else {
			result.Mirror = MirrorSynced
			result.ContactID = contactID
		}
	}

	if s.Publisher != nil {
		if err := s.Publisher.PublishCustomerCreated(ctx, CreatedEvent{
			Customer: *c,
			Mirror:   result.Mirror,
		}); err != nil {
			logger.Error("Unable to publish customer event",
				zap.Error(err),
			)
		}
	}

	return result, nil
}

// List reads customers from exactly one source. SourceCRM never touches the
// Store, and SourceLocal never touches the CRM.
func (s *Syncer) List(ctx context.Context, src Source) (*ListResult, error) {
	switch src {
	case SourceCRM:
		if s.Contacts == nil {
			return nil, crm.ErrCRMDisabled
		}
		raw, err := s.Contacts.ListContacts(ctx)
		if err != nil {
			return nil, err
		}
		return &ListResult{Source: src, Raw: raw}, nil
	case SourceLocal, "":
		customers, err := s.Store.List(ctx)
		if err != nil {
			return nil, err
		}
		if customers == nil {
			customers = make([]Customer, 0)
		}
		return &ListResult{Source: SourceLocal, Customers: customers}, nil
	}
	return nil, fmt.Errorf("unknown source %q", src)
}
