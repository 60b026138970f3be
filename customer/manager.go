package customer

import (
	"context"
	"time"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager handles the database operations relating to Customers
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ Store = &Manager{}

// NewManager returns a new Manager for customers
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&Customer{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize customer.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// List returns every customer in the database
func (m *Manager) List(ctx context.Context) ([]Customer, error) {
	results := make([]Customer, 0)

	result := m.db.WithContext(ctx).Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list customers")
	}

	return results, nil
}

// Insert will create a new customer in the database
func (m *Manager) Insert(ctx context.Context, c *Customer) (string, error) {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()

	result := m.db.WithContext(ctx).Create(c)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return "", extErrors.Wrap(result.Error, "Cannot create a new Customer")
	}

	return c.ID, nil
}
