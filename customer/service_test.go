package customer

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T, store Store, contacts ContactClient) http.Handler {
	syncer := newTestSyncer(t, store, contacts, nil)
	svc, err := NewService(Options{
		Syncer: syncer,
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/api/customers", svc.Router())
	svc.MountLegacy(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(Options{Logger: zap.NewNop()})
	assert.Error(t, err)

	_, err = NewService(Options{Syncer: &Syncer{}})
	assert.Error(t, err)
}

func TestCreateThenList(t *testing.T) {
	testCases := []struct {
		name       string
		createPath string
		listPath   string
	}{
		{"api", "/api/customers", "/api/customers"},
		{"legacy", "/add-customer", "/get-all-customers"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := &memStore{}
			h := newTestRouter(t, store, &fakeContacts{})

			w := do(t, h, http.MethodPost, tc.createPath, `{"name":"Jane Doe","email":"jane@example.com","phone":"+1 (555) 010-0100"}`)
			require.Equal(t, http.StatusCreated, w.Code)

			var created CreateResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
			assert.Equal(t, "Customer added", created.Message)
			assert.Equal(t, "cust-1", created.ID)
			assert.Equal(t, MirrorSynced, created.Mirror.Status)
			assert.Equal(t, "0031", created.Mirror.ContactID)

			w = do(t, h, http.MethodGet, tc.listPath, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var customers []Customer
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &customers))
			require.Len(t, customers, 1)
			assert.Equal(t, created.ID, customers[0].ID)
			assert.Equal(t, "Jane Doe", customers[0].Name)
			assert.Equal(t, "jane@example.com", customers[0].Email)
			assert.Equal(t, "+1 (555) 010-0100", customers[0].Phone)
		})
	}
}

func TestCreateMissingFields(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		messages []string
	}{
		{"missing_name", `{"email":"jane@example.com","phone":"555-0100"}`, []string{"name is required"}},
		{"missing_email", `{"name":"Jane Doe","phone":"555-0100"}`, []string{"email is required"}},
		{"missing_phone", `{"name":"Jane Doe","email":"jane@example.com"}`, []string{"phone is required"}},
		{"empty_object", `{}`, []string{"name is required", "email is required", "phone is required"}},
		{"null_body", `null`, []string{"name is required", "email is required", "phone is required"}},
		{"blank_name", `{"name":"   ","email":"jane@example.com","phone":"555-0100"}`, []string{"name is required"}},
		{"whitespace_only", `{"name":"\t","email":" ","phone":"\n"}`, []string{"name is required", "email is required", "phone is required"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := &memStore{}
			contacts := &fakeContacts{}
			h := newTestRouter(t, store, contacts)

			w := do(t, h, http.MethodPost, "/api/customers", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var body struct {
				Error    string   `json:"error"`
				Messages []string `json:"messages"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "Missing required fields", body.Error)
			assert.Equal(t, tc.messages, body.Messages)

			assert.Zero(t, store.insertCalls)
			assert.Zero(t, contacts.createCalls)
		})
	}
}

func TestCreateInvalidJSON(t *testing.T) {
	store := &memStore{}
	h := newTestRouter(t, store, nil)

	w := do(t, h, http.MethodPost, "/api/customers", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Bad request","messages":["Invalid JSON body"]}`, w.Body.String())
	assert.Zero(t, store.insertCalls)
}

func TestCreateStoreFailure(t *testing.T) {
	store := &memStore{insertErr: errors.New("pq: relation \"customers\" does not exist")}
	contacts := &fakeContacts{}
	h := newTestRouter(t, store, contacts)

	w := do(t, h, http.MethodPost, "/api/customers", `{"name":"Jane Doe","email":"jane@example.com","phone":"555-0100"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to add customer","messages":[]}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "relation")
	assert.Zero(t, contacts.createCalls)
}

func TestCreateMirrorFailure(t *testing.T) {
	store := &memStore{}
	h := newTestRouter(t, store, &fakeContacts{createErr: errors.New("CRM returned HTTP 401")})

	w := do(t, h, http.MethodPost, "/api/customers", `{"name":"Jane Doe","email":"jane@example.com","phone":"555-0100"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created CreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "cust-1", created.ID)
	assert.Equal(t, MirrorFailed, created.Mirror.Status)
	assert.NotEmpty(t, created.Mirror.Error)
	assert.NotContains(t, w.Body.String(), "401")
	assert.Len(t, store.items, 1)
}

func TestCreateCRMDisabled(t *testing.T) {
	h := newTestRouter(t, &memStore{}, nil)

	w := do(t, h, http.MethodPost, "/api/customers", `{"name":"Jane Doe","email":"jane@example.com","phone":"555-0100"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"message":"Customer added","id":"cust-1","mirror":{"status":"disabled"}}`, w.Body.String())
}

func TestListEmpty(t *testing.T) {
	h := newTestRouter(t, &memStore{}, nil)

	w := do(t, h, http.MethodGet, "/api/customers", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestListFromCRM(t *testing.T) {
	store := &memStore{items: []Customer{{ID: "cust-1", Name: "Jane Doe", Email: "jane@example.com", Phone: "555-0100"}}}
	raw := `{"totalSize":1,"done":true,"records":[{"Id":"003A","FirstName":"Jane","LastName":"Doe"}]}`
	contacts := &fakeContacts{listBody: []byte(raw)}
	h := newTestRouter(t, store, contacts)

	for _, flag := range []string{"sf", "salesforce", "crm"} {
		w := do(t, h, http.MethodGet, "/api/customers?source="+flag, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, raw, w.Body.String())
	}
	assert.Zero(t, store.listCalls)
	assert.Equal(t, 3, contacts.listCalls)

	w := do(t, h, http.MethodGet, "/api/customers", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, store.listCalls)
	assert.Equal(t, 3, contacts.listCalls)
}

func TestListFromCRMDisabled(t *testing.T) {
	store := &memStore{}
	h := newTestRouter(t, store, nil)

	w := do(t, h, http.MethodGet, "/api/customers?source=sf", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Zero(t, store.listCalls)
}

func TestListFromCRMFailure(t *testing.T) {
	h := newTestRouter(t, &memStore{}, &fakeContacts{listErr: errors.New("CRM returned HTTP 500: boom")})

	w := do(t, h, http.MethodGet, "/api/customers?source=sf", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch customer records","messages":[]}`, w.Body.String())
}

func TestListUnknownSource(t *testing.T) {
	store := &memStore{}
	contacts := &fakeContacts{}
	h := newTestRouter(t, store, contacts)

	w := do(t, h, http.MethodGet, "/api/customers?source=mongo", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, store.listCalls)
	assert.Zero(t, contacts.listCalls)
}

func TestListStoreFailure(t *testing.T) {
	h := newTestRouter(t, &memStore{listErr: errors.New("connection reset by peer")}, nil)

	w := do(t, h, http.MethodGet, "/api/customers", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// nothing but the error body
	assert.JSONEq(t, `{"error":"Failed to fetch customer records","messages":[]}`, w.Body.String())
}
