package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/zhouzirui/z-board/backend/internal/model/message"
	messageService "github.com/zhouzirui/z-board/backend/internal/service/message"
	snapshotService "github.com/zhouzirui/z-board/backend/internal/service/snapshot"
	"github.com/zhouzirui/z-board/backend/internal/storage/snapshot"
)

func TestRunServerStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	srv := &http.Server{Addr: addr, Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServer err: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("runServer did not return after cancel")
	}
}

// gatedStore holds the first Save until release is closed.
type gatedStore struct {
	*snapshot.MemoryStore
	entered chan struct{}
	release chan struct{}
	first   bool
}

func (s *gatedStore) Save(ctx context.Context, snap message.Snapshot) (message.SnapshotInfo, error) {
	if !s.first {
		s.first = true
		close(s.entered)
		<-s.release
	}
	return s.MemoryStore.Save(ctx, snap)
}

func TestFinalSnapshotWaitsForRunningSave(t *testing.T) {
	svc := messageService.NewService()
	if _, err := svc.CreateMessage(context.Background(), "keep", nil, "alice"); err != nil {
		t.Fatalf("CreateMessage err: %v", err)
	}

	store := &gatedStore{
		MemoryStore: snapshot.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	scheduler, err := snapshotService.NewScheduler(snapshotService.Config{Retain: 5}, svc, store, nil, nil)
	if err != nil {
		t.Fatalf("NewScheduler err: %v", err)
	}

	// A scheduled save is still in flight when shutdown begins.
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		scheduler.SaveNow(context.Background())
	}()
	<-store.entered

	result := make(chan error, 1)
	go func() { result <- finalSnapshot(runDone, scheduler, time.Second) }()

	select {
	case err := <-result:
		t.Fatalf("final snapshot returned before the running save finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("finalSnapshot err: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("finalSnapshot did not return")
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 saved snapshots, got %d", store.Len())
	}
}

func TestFinalSnapshotWithoutPersistence(t *testing.T) {
	runDone := make(chan struct{})
	close(runDone)
	if err := finalSnapshot(runDone, nil, time.Second); err != nil {
		t.Fatalf("finalSnapshot err: %v", err)
	}
}
