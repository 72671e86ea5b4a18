package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"presence-auth/internal/domain"
	"presence-auth/internal/repository"
)

func newTestPresenceService() (*PresenceService, *repository.MemoryUserRepository, *eventRecorder) {
	logger := zap.NewNop()
	users := repository.NewMemoryUserRepository()
	connections := repository.NewMemoryConnectionRepository()
	recorder := &eventRecorder{}
	svc := NewPresenceService(logger, connections, users, recorder)
	return svc, users, recorder
}

func seedUser(t *testing.T, users *repository.MemoryUserRepository, id string) {
	t.Helper()
	err := users.Create(context.Background(), domain.User{
		ID:        id,
		Email:     id + "@example.com",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestPresenceService_SingleTransitionPerFlip(t *testing.T) {
	svc, users, recorder := newTestPresenceService()
	ctx := context.Background()
	seedUser(t, users, "u1")

	const n = 4
	for i := 0; i < n; i++ {
		_, err := svc.Connect(ctx, ConnectInput{
			ConnectionID: fmt.Sprintf("c%d", i),
			UserID:       "u1",
		})
		if err != nil {
			t.Fatalf("connect %d: %v", i, err)
		}
		online, err := svc.IsOnline(ctx, "u1")
		if err != nil {
			t.Fatalf("is online: %v", err)
		}
		if !online {
			t.Fatalf("expected user online after connect %d", i)
		}
	}

	for i := 0; i < n; i++ {
		removed, err := svc.Disconnect(ctx, fmt.Sprintf("c%d", i))
		if err != nil {
			t.Fatalf("disconnect %d: %v", i, err)
		}
		if !removed {
			t.Fatalf("expected disconnect %d to remove", i)
		}
	}

	online, err := svc.IsOnline(ctx, "u1")
	if err != nil {
		t.Fatalf("is online: %v", err)
	}
	if online {
		t.Fatalf("expected user offline at the end")
	}

	if got := len(recorder.byType(domain.EventClientConnected)); got != n {
		t.Fatalf("expected %d ClientConnected events, got %d", n, got)
	}
	if got := len(recorder.byType(domain.EventClientDisconnected)); got != n {
		t.Fatalf("expected %d ClientDisconnected events, got %d", n, got)
	}
	if got := len(recorder.byType(domain.EventUserConnected)); got != 1 {
		t.Fatalf("expected exactly 1 UserConnected event, got %d", got)
	}
	if got := len(recorder.byType(domain.EventUserDisconnected)); got != 1 {
		t.Fatalf("expected exactly 1 UserDisconnected event, got %d", got)
	}
}

func TestPresenceService_TwoDeviceScenario(t *testing.T) {
	svc, users, recorder := newTestPresenceService()
	ctx := context.Background()
	seedUser(t, users, "u1")

	// Dispositivo A: primera conexión, el usuario pasa a online.
	if _, err := svc.Connect(ctx, ConnectInput{ConnectionID: "a1", UserID: "u1", DeviceID: "A"}); err != nil {
		t.Fatalf("connect a1: %v", err)
	}
	// Dispositivo B mientras A sigue activo: sin segunda transición.
	if _, err := svc.Connect(ctx, ConnectInput{ConnectionID: "a2", UserID: "u1", DeviceID: "B"}); err != nil {
		t.Fatalf("connect a2: %v", err)
	}
	if _, err := svc.Disconnect(ctx, "a1"); err != nil {
		t.Fatalf("disconnect a1: %v", err)
	}
	if _, err := svc.Disconnect(ctx, "a2"); err != nil {
		t.Fatalf("disconnect a2: %v", err)
	}

	want := []domain.EventType{
		domain.EventClientConnected,    // a1
		domain.EventUserConnected,      // transición offline -> online
		domain.EventClientConnected,    // a2
		domain.EventClientDisconnected, // a1
		domain.EventClientDisconnected, // a2
		domain.EventUserDisconnected,   // transición online -> offline
	}
	got := recorder.all()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(got), got)
	}
	for i, ev := range got {
		if ev.Type != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], ev.Type)
		}
	}
}

func TestPresenceService_DisconnectUnknownIsNoop(t *testing.T) {
	svc, _, recorder := newTestPresenceService()
	ctx := context.Background()

	removed, err := svc.Disconnect(ctx, "missing")
	if err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if removed {
		t.Fatalf("expected no-op for unknown connection")
	}
	if got := len(recorder.all()); got != 0 {
		t.Fatalf("expected no events, got %d", got)
	}
}

func TestPresenceService_AnonymousConnectionHasNoTransitions(t *testing.T) {
	svc, _, recorder := newTestPresenceService()
	ctx := context.Background()

	conn, err := svc.Connect(ctx, ConnectInput{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if conn.ID == "" {
		t.Fatalf("expected a generated connection id")
	}
	if _, err := svc.Disconnect(ctx, conn.ID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	if got := len(recorder.byType(domain.EventUserConnected)); got != 0 {
		t.Fatalf("expected no UserConnected for anonymous connection, got %d", got)
	}
	if got := len(recorder.byType(domain.EventUserDisconnected)); got != 0 {
		t.Fatalf("expected no UserDisconnected for anonymous connection, got %d", got)
	}
}

func TestPresenceService_DuplicateConnectionIDConflicts(t *testing.T) {
	svc, _, _ := newTestPresenceService()
	ctx := context.Background()

	if _, err := svc.Connect(ctx, ConnectInput{ConnectionID: "c1"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := svc.Connect(ctx, ConnectInput{ConnectionID: "c1"}); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPresenceService_TransitionUpdatesLastActive(t *testing.T) {
	svc, users, _ := newTestPresenceService()
	ctx := context.Background()
	seedUser(t, users, "u1")

	if _, err := svc.Connect(ctx, ConnectInput{ConnectionID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	user, err := users.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.LastActiveAt == nil {
		t.Fatalf("expected last active timestamp after transition")
	}
}

func TestPresenceService_DisconnectAllDrivesTransitions(t *testing.T) {
	svc, users, recorder := newTestPresenceService()
	ctx := context.Background()
	seedUser(t, users, "u1")
	seedUser(t, users, "u2")

	if _, err := svc.Connect(ctx, ConnectInput{ConnectionID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("connect c1: %v", err)
	}
	if _, err := svc.Connect(ctx, ConnectInput{ConnectionID: "c2", UserID: "u1"}); err != nil {
		t.Fatalf("connect c2: %v", err)
	}
	if _, err := svc.Connect(ctx, ConnectInput{ConnectionID: "c3", UserID: "u2"}); err != nil {
		t.Fatalf("connect c3: %v", err)
	}
	if _, err := svc.Connect(ctx, ConnectInput{ConnectionID: "c4"}); err != nil {
		t.Fatalf("connect c4: %v", err)
	}

	if err := svc.DisconnectAll(ctx); err != nil {
		t.Fatalf("disconnect all: %v", err)
	}

	if got := len(recorder.byType(domain.EventClientDisconnected)); got != 4 {
		t.Fatalf("expected 4 ClientDisconnected events, got %d", got)
	}
	// Una sola transición por usuario, sin importar cuántas conexiones tenía.
	if got := len(recorder.byType(domain.EventUserDisconnected)); got != 2 {
		t.Fatalf("expected 2 UserDisconnected events, got %d", got)
	}

	for _, userID := range []string{"u1", "u2"} {
		online, err := svc.IsOnline(ctx, userID)
		if err != nil {
			t.Fatalf("is online %s: %v", userID, err)
		}
		if online {
			t.Fatalf("expected %s offline after bulk disconnect", userID)
		}
	}
}
