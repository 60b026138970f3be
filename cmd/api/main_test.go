package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zllovesuki/custbridge/customer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type emptyStore struct{}

func (emptyStore) List(ctx context.Context) ([]customer.Customer, error) {
	return []customer.Customer{}, nil
}

func (emptyStore) Insert(ctx context.Context, c *customer.Customer) (string, error) {
	c.ID = "cust-1"
	return c.ID, nil
}

func testRouter(t *testing.T) http.Handler {
	syncer, err := customer.NewSyncer(customer.SyncerOptions{
		Store:  emptyStore{},
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	svc, err := customer.NewService(customer.Options{
		Syncer: syncer,
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	return newRouter(svc)
}

func TestRouter(t *testing.T) {
	router := testRouter(t)

	testCases := []struct {
		name        string
		method      string
		path        string
		body        string
		status      int
		contentType string
		expected    string
	}{
		{"health", http.MethodGet, "/api/health", "", http.StatusOK, "text/plain", "API is working!"},
		{"root_health", http.MethodGet, "/", "", http.StatusOK, "text/plain", "API is working!"},
		{"list", http.MethodGet, "/api/customers", "", http.StatusOK, "application/json", `[]`},
		{"legacy_list", http.MethodGet, "/get-all-customers", "", http.StatusOK, "application/json", `[]`},
		{"not_found", http.MethodGet, "/no-such-route", "", http.StatusNotFound, "application/json",
			`{"error":"Requested resources not found","messages":[]}`},
		{"method_not_allowed", http.MethodDelete, "/api/health", "", http.StatusMethodNotAllowed, "application/json",
			`{"error":"Method not allowed","messages":[]}`},
		{"legacy_method_not_allowed", http.MethodPut, "/add-customer", `{}`, http.StatusMethodNotAllowed, "application/json",
			`{"error":"Method not allowed","messages":[]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), tc.contentType)
			if strings.HasPrefix(tc.expected, "{") || strings.HasPrefix(tc.expected, "[") {
				assert.JSONEq(t, tc.expected, rec.Body.String())
			} else {
				assert.Equal(t, tc.expected, rec.Body.String())
			}
		})
	}
}
