// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/Nasti98RS/swarm-db-api/internal/domain"
	store "github.com/Nasti98RS/swarm-db-api/internal/repository"
)

// NewTestSQLiteStore opens an in-memory store closed at test cleanup.
func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(store.DriverCGO, ":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// SeedProducts inserts the given products.
func SeedProducts(t *testing.T, s *store.SQLiteStore, products ...domain.Product) {
	t.Helper()
	for i := range products {
		if err := s.CreateProduct(context.Background(), &products[i]); err != nil {
			t.Fatalf("failed to seed product %q: %v", products[i].Name, err)
		}
	}
}
