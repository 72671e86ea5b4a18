package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestPresenceHandlers_ConnectDisconnectFlow(t *testing.T) {
	r := newTestRouter(t)

	rec := postJSON(t, r, "/presence/connect", gin.H{
		"connection_id": "c1",
		"user_id":       "u1",
		"device_id":     "laptop",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("connect: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/presence/users/u1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rec.Code)
	}
	var status struct {
		Online bool `json:"online"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Online {
		t.Fatalf("expected user online after connect")
	}

	rec = postJSON(t, r, "/presence/disconnect", gin.H{"connection_id": "c1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("disconnect: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/presence/users/u1", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Online {
		t.Fatalf("expected user offline after disconnect")
	}
}

func TestPresenceHandlers_DuplicateConnectionConflicts(t *testing.T) {
	r := newTestRouter(t)

	rec := postJSON(t, r, "/presence/connect", gin.H{"connection_id": "c1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("connect: expected 201, got %d", rec.Code)
	}
	rec = postJSON(t, r, "/presence/connect", gin.H{"connection_id": "c1"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate connect: expected 409, got %d", rec.Code)
	}
}

func TestPresenceHandlers_DisconnectUnknownIsNoop(t *testing.T) {
	r := newTestRouter(t)

	rec := postJSON(t, r, "/presence/disconnect", gin.H{"connection_id": "missing"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Removed bool `json:"removed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Removed {
		t.Fatalf("expected removed=false for unknown connection")
	}
}
