//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	pconfig "github.com/boxoffice/checkout/internal/platform/config"
	pfirestore "github.com/boxoffice/checkout/internal/platform/firestore"
	"github.com/boxoffice/checkout/internal/platform/firestore/firestoretest"
)

type sampleEntity struct {
	Name  string `firestore:"name"`
	Count int    `firestore:"count"`
}

func TestProviderAndReadRepositoryIntegration(t *testing.T) {
	endpoint := firestoretest.StartEmulator(t)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "test-project", EmulatorHost: endpoint})
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := provider.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	client, err := provider.Client(ctx)
	if err != nil {
		t.Fatalf("expected firestore client, got error: %v", err)
	}
	if _, err := client.Collection("samples").Doc("sample-1").Set(ctx, sampleEntity{Name: "alpha", Count: 1}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	repo := pfirestore.NewReadRepository[sampleEntity](provider, "samples", nil)
	doc, err := repo.Get(ctx, "sample-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if doc.ID != "sample-1" || doc.Data.Name != "alpha" || doc.Data.Count != 1 {
		t.Fatalf("unexpected document: %#v", doc)
	}
	if doc.UpdateTime.IsZero() {
		t.Fatalf("expected update time to be set")
	}

	_, err = repo.Get(ctx, "missing")
	var fsErr *pfirestore.Error
	if !errors.As(err, &fsErr) || !fsErr.IsNotFound() {
		t.Fatalf("expected not found error, got %v", err)
	}

	if err := provider.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := provider.Client(ctx); !errors.Is(err, pfirestore.ErrProviderClosed) {
		t.Fatalf("expected ErrProviderClosed after close, got %v", err)
	}
}
