package customer

import "context"

// Store persists Customers. List returns records in whatever order the
// backend yields them.
type Store interface {
	List(ctx context.Context) ([]Customer, error)
	// Insert assigns c.ID and c.CreatedAt, persists c and returns the new ID
	Insert(ctx context.Context, c *Customer) (string, error)
}
