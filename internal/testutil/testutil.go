// Package testutil provides shared test helpers for setting up stores,
// remotes and engines.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/offnote/internal/localstore"
	"github.com/starford/offnote/internal/remote"
	"github.com/starford/offnote/internal/remote/remotetest"
	"github.com/starford/offnote/internal/syncengine"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *localstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "offnote-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := localstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRemote starts a fake remote store and a client pointed at it.
func TestRemote(t *testing.T) (*remotetest.Server, *remote.Client) {
	t.Helper()
	srv := remotetest.New()
	t.Cleanup(srv.Close)
	return srv, remote.NewClient(srv.URL, srv.Client(), 2*time.Second)
}

// TestEngine wires an engine to a temporary database (used as both store and
// durable queue) and a fake remote.
func TestEngine(t *testing.T, opts ...syncengine.Option) (*syncengine.Engine, *localstore.DB, *remotetest.Server) {
	t.Helper()
	db := TestDB(t)
	srv, client := TestRemote(t)
	opts = append([]syncengine.Option{syncengine.WithLogger(DiscardLogger())}, opts...)
	eng := syncengine.New(db, db, client, opts...)
	t.Cleanup(eng.Close)
	return eng, db, srv
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
