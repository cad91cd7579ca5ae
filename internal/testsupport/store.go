package testsupport

import (
	"context"
	"testing"

	"torrank/internal/config"
	"torrank/internal/rulegroup"
	"torrank/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// SaveGroups persists groups in order.
func SaveGroups(t testing.TB, s *store.Store, groups ...rulegroup.Group) {
	t.Helper()

	for _, g := range groups {
		if err := s.SaveGroup(context.Background(), g); err != nil {
			t.Fatalf("store.SaveGroup(%s): %v", g.Name, err)
		}
	}
}
