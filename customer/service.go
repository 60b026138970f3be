package customer

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/zllovesuki/custbridge/crm"
	resp "github.com/zllovesuki/custbridge/response"

	"github.com/go-chi/chi"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Options contains the configuration for Service router
type Options struct {
	Syncer *Syncer
	Logger *zap.Logger
}

// Service is the customer API router
type Service struct {
	Options
}

// CreateRequest is the model of user request to add a customer
type CreateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// MirrorResult is the CRM part of CreateResponse
type MirrorResult struct {
	Status    MirrorStatus `json:"status"`
	ContactID string       `json:"contactId,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// CreateResponse confirms a stored customer
type CreateResponse struct {
	Message string       `json:"message"`
	ID      string       `json:"id"`
	Mirror  MirrorResult `json:"mirror"`
}

// NewService will create an instance of the customer API router
func NewService(option Options) (*Service, error) {
	if option.Syncer == nil {
		return nil, fmt.Errorf("nil Syncer is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		Options: option,
	}, nil
}

func (s *Service) listCustomers(w http.ResponseWriter, r *http.Request) {
	src, err := ParseSource(r.URL.Query().Get("source"))
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Unknown source"))
		return
	}

	logger := s.Logger.With(zap.String("source", string(src)))

	result, err := s.Syncer.List(r.Context(), src)
	if errors.Is(err, crm.ErrCRMDisabled) {
		resp.WriteError(w, r, resp.ErrServiceUnavailable().AddMessages("CRM integration is not configured"))
		return
	}
	if err != nil {
		logger.Error("Unable to list customers",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().WithMessage("Failed to fetch customer records"))
		return
	}

	if result.Source == SourceCRM {
		resp.WriteRaw(w, r, result.Raw)
		return
	}
	resp.WriteResponse(w, r, result.Customers)
}

func (s *Service) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	logger := s.Logger.With(zap.String("email", req.Email))

	result, err := s.Syncer.Create(r.Context(), &Customer{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})

	var verr *ValidationError
	if errors.As(err, &verr) {
		resp.WriteError(w, r, resp.ErrMissingFields(verr.Fields...))
		return
	}
	if err != nil {
		logger.Error("Unable to create Customer",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().WithMessage("Failed to add customer"))
		return
	}

	mirror := MirrorResult{
		Status:    result.Mirror,
		ContactID: result.ContactID,
	}
	if result.MirrorError != nil {
		mirror.Error = "Customer stored locally but could not be synced to CRM"
	}

	resp.WriteResponseWithStatus(w, r, http.StatusCreated, CreateResponse{
		Message: "Customer added",
		ID:      result.Customer.ID,
		Mirror:  mirror,
	})
}

// Router will return the routes under customer API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listCustomers)
	r.Post("/", s.createCustomer)

	return r
}

// MountLegacy registers the older flat endpoints on r
func (s *Service) MountLegacy(r chi.Router) {
	r.Get("/get-all-customers", s.listCustomers)
	r.Post("/add-customer", s.createCustomer)
}
