package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fastship/shipper-agent/internal/api"
	"github.com/fastship/shipper-agent/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend записывает порядок запросов и отвечает по таблице путей.
type fakeBackend struct {
	mu       sync.Mutex
	requests []string
	routes   map[string]routeResponse
}

type routeResponse struct {
	status int
	body   string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{routes: make(map[string]routeResponse)}
}

func (b *fakeBackend) route(method, path string, status int, body string) {
	b.routes[method+" "+path] = routeResponse{status: status, body: body}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	key := r.Method + " " + r.URL.Path
	b.requests = append(b.requests, key)
	resp, ok := b.routes[key]
	b.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"route not found"}`))
		return
	}
	w.WriteHeader(resp.status)
	w.Write([]byte(resp.body))
}

func (b *fakeBackend) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.requests))
	copy(out, b.requests)
	return out
}

func newTestClient(t *testing.T, backend *fakeBackend) *api.Client {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.New(logger, api.Config{BaseURL: srv.URL}, api.NewSession("test-token"))
}

func TestClient_ListOrders(t *testing.T) {
	t.Run("primary endpoint succeeds", func(t *testing.T) {
		backend := newFakeBackend()
		backend.route("GET", "/api/shipper/orders", http.StatusOK,
			`{"orders":[{"_id":"a","order_status":"AwaitingPickup","shipper_ack":"Pending"}],"pagination":{"page":1,"limit":50,"total":1}}`)

		client := newTestClient(t, backend)
		res, err := client.ListOrders(context.Background(), api.ListFilter{})

		require.NoError(t, err)
		require.Len(t, res.Orders, 1)
		assert.Equal(t, "a", res.Orders[0].ID)
		assert.Equal(t, entities.StatusAwaitingPickup, res.Orders[0].Status)
		assert.Equal(t, 1, res.Pagination.Total)
		assert.Equal(t, []string{"GET /api/shipper/orders"}, backend.seen())
	})

	t.Run("well-formed empty list is trusted, no fallback", func(t *testing.T) {
		backend := newFakeBackend()
		backend.route("GET", "/api/shipper/orders", http.StatusOK, `[]`)

		client := newTestClient(t, backend)
		res, err := client.ListOrders(context.Background(), api.ListFilter{})

		require.NoError(t, err)
		assert.Empty(t, res.Orders)
		assert.Equal(t, []string{"GET /api/shipper/orders"}, backend.seen())
	})

	t.Run("falls back on server error then on shape mismatch", func(t *testing.T) {
		backend := newFakeBackend()
		backend.route("GET", "/api/shipper/orders", http.StatusInternalServerError, `{"message":"boom"}`)
		backend.route("GET", "/api/orders/my", http.StatusOK, `{"unexpected":true}`)
		backend.route("GET", "/api/orders", http.StatusOK, `{"data":[{"order_id":"HR-1","order_status":"Delivered"}]}`)

		client := newTestClient(t, backend)
		res, err := client.ListOrders(context.Background(), api.ListFilter{})

		require.NoError(t, err)
		require.Len(t, res.Orders, 1)
		assert.Equal(t, "HR-1", res.Orders[0].OrderID)
		assert.Equal(t, []string{
			"GET /api/shipper/orders",
			"GET /api/orders/my",
			"GET /api/orders",
		}, backend.seen())
	})

	t.Run("all endpoints fail, primary error surfaces", func(t *testing.T) {
		backend := newFakeBackend()
		backend.route("GET", "/api/shipper/orders", http.StatusBadGateway, `{"message":"primary down"}`)
		backend.route("GET", "/api/orders/my", http.StatusInternalServerError, `{"message":"secondary down"}`)
		backend.route("GET", "/api/orders", http.StatusInternalServerError, `{"message":"tertiary down"}`)

		client := newTestClient(t, backend)
		_, err := client.ListOrders(context.Background(), api.ListFilter{})

		require.Error(t, err)
		assert.True(t, api.IsKind(err, api.KindServer))
		assert.Equal(t, "primary down", err.Error())
	})
}

func TestClient_GetOrder(t *testing.T) {
	t.Run("fallback succeeds", func(t *testing.T) {
		backend := newFakeBackend()
		backend.route("GET", "/api/shipper/orders/a", http.StatusNotFound, `{"message":"nope"}`)
		backend.route("GET", "/api/orders/a", http.StatusOK, `{"order":{"_id":"a","order_status":"Delivered"}}`)

		client := newTestClient(t, backend)
		order, err := client.GetOrder(context.Background(), "a")

		require.NoError(t, err)
		assert.Equal(t, "a", order.ID)
		assert.Equal(t, entities.StatusDelivered, order.Status)
	})

	t.Run("both fail, primary error re-raised", func(t *testing.T) {
		backend := newFakeBackend()
		backend.route("GET", "/api/shipper/orders/a", http.StatusForbidden, `{"message":"primary says no"}`)
		backend.route("GET", "/api/orders/a", http.StatusInternalServerError, `{"message":"fallback says no"}`)

		client := newTestClient(t, backend)
		_, err := client.GetOrder(context.Background(), "a")

		require.Error(t, err)
		assert.Equal(t, "primary says no", err.Error())

		apiErr, ok := err.(*api.Error)
		require.True(t, ok)
		assert.Equal(t, http.StatusForbidden, apiErr.HTTPStatus)
	})

	t.Run("empty id is guarded", func(t *testing.T) {
		client := newTestClient(t, newFakeBackend())
		_, err := client.GetOrder(context.Background(), "")

		require.Error(t, err)
		assert.True(t, api.IsKind(err, api.KindGuard))
	})
}

func TestClient_AcceptReject(t *testing.T) {
	t.Run("accept falls through to status patch", func(t *testing.T) {
		backend := newFakeBackend()
		backend.route("POST", "/api/shipper/orders/a/accept", http.StatusNotFound, ``)
		backend.route("POST", "/api/orders/a/accept", http.StatusNotFound, ``)
		backend.route("PATCH", "/api/orders/a/status", http.StatusOK, `{}`)

		client := newTestClient(t, backend)
		require.NoError(t, client.Accept(context.Background(), "a"))

		assert.Equal(t, []string{
			"POST /api/shipper/orders/a/accept",
			"POST /api/orders/a/accept",
			"PATCH /api/orders/a/status",
		}, backend.seen())
	})

	t.Run("all three fail, last error surfaces", func(t *testing.T) {
		backend := newFakeBackend()
		backend.route("POST", "/api/shipper/orders/a/reject", http.StatusInternalServerError, `{"message":"first"}`)
		backend.route("POST", "/api/orders/a/reject", http.StatusInternalServerError, `{"message":"second"}`)
		backend.route("PATCH", "/api/orders/a/status", http.StatusInternalServerError, `{"message":"third"}`)

		client := newTestClient(t, backend)
		err := client.Reject(context.Background(), "a")

		require.Error(t, err)
		assert.Equal(t, "third", err.Error())
	})

	t.Run("reject patches Cancelled", func(t *testing.T) {
		var patched struct {
			OrderStatus string `json:"order_status"`
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/api/orders/a/status", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPatch {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
			w.Write([]byte(`{}`))
		})
		mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		client := api.New(logger, api.Config{BaseURL: srv.URL}, api.NewSession(""))

		require.NoError(t, client.Reject(context.Background(), "a"))
		assert.Equal(t, entities.StatusCancelled, patched.OrderStatus)
	})
}

func TestClient_UpdateStatus(t *testing.T) {
	t.Run("fallback path used, primary error kept on double failure", func(t *testing.T) {
		backend := newFakeBackend()
		backend.route("PATCH", "/api/shipper/orders/a/status", http.StatusBadRequest, `{"msg":"bad transition"}`)
		backend.route("PATCH", "/api/orders/a/status", http.StatusInternalServerError, `{"message":"fallback broken"}`)

		client := newTestClient(t, backend)
		err := client.UpdateStatus(context.Background(), "a", entities.StatusDelivered, "")

		require.Error(t, err)
		assert.Equal(t, "bad transition", err.Error())
	})

	t.Run("fallback success", func(t *testing.T) {
		backend := newFakeBackend()
		backend.route("PATCH", "/api/shipper/orders/a/status", http.StatusNotFound, ``)
		backend.route("PATCH", "/api/orders/a/status", http.StatusOK, `{}`)

		client := newTestClient(t, backend)
		require.NoError(t, client.UpdateStatus(context.Background(), "a", entities.StatusDelivered, "left at door"))
	})
}

func TestClient_NetworkError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := api.New(logger, api.Config{BaseURL: "http://127.0.0.1:1"}, api.NewSession(""))

	_, err := client.ListOrders(context.Background(), api.ListFilter{})

	require.Error(t, err)
	assert.True(t, api.IsKind(err, api.KindNetwork))
	assert.Equal(t, "network error", err.Error())
}

func TestClient_AuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := api.NewSession("initial")
	client := api.New(logger, api.Config{BaseURL: srv.URL}, session)

	_, err := client.ListOrders(context.Background(), api.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer initial", gotAuth)

	// Последняя запись токена побеждает для следующих запросов.
	session.SetToken("rotated")
	_, err = client.ListOrders(context.Background(), api.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer rotated", gotAuth)
}
