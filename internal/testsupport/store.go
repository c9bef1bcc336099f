package testsupport

import (
	"testing"

	"reelmeta/internal/checkpoint"
	"reelmeta/internal/config"
)

// MustOpenStore opens the checkpoint store configured on cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *checkpoint.Store {
	t.Helper()

	store, err := checkpoint.Open(cfg.Paths.CheckpointFile)
	if err != nil {
		t.Fatalf("checkpoint.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
