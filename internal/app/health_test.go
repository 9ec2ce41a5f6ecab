package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"journeymap/api/internal/session"
)

func serve(svc *Service, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	NewHTTPServer(svc, "*").Handler().ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	rr := serve(newTestService(&fakeStore{}), httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ok := decodeResponse(t, rr)["ok"]; ok != true {
		t.Fatalf("expected ok=true, got %v", ok)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestReadyEndpoint_Success(t *testing.T) {
	rr := serve(newTestService(&fakeStore{}), httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	payload := decodeResponse(t, rr)
	if payload["status"] != "ready" {
		t.Fatalf("expected status ready, got %v", payload["status"])
	}
	checks, _ := payload["checks"].(map[string]any)
	if _, ok := checks["redis"]; ok {
		t.Fatalf("redis check should be absent when redis is not configured")
	}
}

func TestReadyEndpoint_DatabaseFailure(t *testing.T) {
	fs := &fakeStore{pingFn: func(context.Context) error {
		return errors.New("connection refused")
	}}
	rr := serve(newTestService(fs), httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	payload := decodeResponse(t, rr)
	if payload["status"] != "not_ready" || payload["ok"] != false {
		t.Fatalf("unexpected payload %v", payload)
	}
	checks := payload["checks"].(map[string]any)
	database := checks["database"].(map[string]any)
	if database["error"] != "connection refused" {
		t.Fatalf("unexpected database check %v", database)
	}
}

func TestReadyEndpoint_ChecksRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := newTestService(&fakeStore{})
	svc.redis = session.NewRedisStoreWithClient(client)

	rr := serve(svc, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	mr.Close()
	rr = serve(svc, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 after redis went away, got %d", rr.Code)
	}
	checks := decodeResponse(t, rr)["checks"].(map[string]any)
	if redisCheck := checks["redis"].(map[string]any); redisCheck["ok"] != false {
		t.Fatalf("unexpected redis check %v", redisCheck)
	}
}

func TestPreflightIsAnswered(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	rr := serve(newTestService(&fakeStore{}), req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	rr := serve(newTestService(&fakeStore{}), httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	if decodeResponse(t, rr)["code"] != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND envelope")
	}
}
