//go:build integration

package firestore

import (
	"context"
	"errors"
	"testing"
	"time"

	pconfig "github.com/boxoffice/checkout/internal/platform/config"
	pfirestore "github.com/boxoffice/checkout/internal/platform/firestore"
	"github.com/boxoffice/checkout/internal/platform/firestore/firestoretest"
)

func TestOrganizerSettingsRepositoryIntegration(t *testing.T) {
	endpoint := firestoretest.StartEmulator(t)
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "organizers-test", EmulatorHost: endpoint})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client, err := provider.Client(ctx)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	seed := organizerDocument{
		Currency:            "EUR",
		SystemFeePercentage: "5",
		SystemFeeVATRate:    "19",
		DeliveryOptions:     []deliveryDocument{{ID: "mail", Type: "physical", FeeAmount: "5", VATRate: "19"}},
	}
	if _, err := client.Collection(organizerCollection).Doc("org-1").Set(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	repo, err := NewOrganizerSettingsRepository(provider)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}

	settings, err := repo.FindByID(ctx, "org-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if settings.FeePolicy.SystemFeePercentage == nil || settings.FeePolicy.SystemFeePercentage.String() != "5" {
		t.Fatalf("unexpected fee policy %+v", settings.FeePolicy)
	}
	if _, ok := settings.DeliveryOption("mail"); !ok {
		t.Fatalf("expected mail delivery option")
	}

	_, err = repo.FindByID(ctx, "missing")
	var fsErr *pfirestore.Error
	if !errors.As(err, &fsErr) || !fsErr.IsNotFound() {
		t.Fatalf("expected not found, got %v", err)
	}
}
