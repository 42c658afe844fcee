package testutil

import (
	"testing"
	"time"

	"github.com/nhle/shipdesk-notify/internal/model"
	"github.com/nhle/shipdesk-notify/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// fixtureEpoch anchors fixture timestamps so ordering is deterministic.
var fixtureEpoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// Notification returns a broadcast shipment notification with the given id
// and read flag. Later ids in a test should be created with larger seq.
func Notification(id string, read bool, seq int) model.Notification {
	return model.Notification{
		ID:        id,
		Category:  "shipment",
		Body:      "Shipment " + id + " updated",
		IsRead:    read,
		CreatedAt: fixtureEpoch.Add(time.Duration(seq) * time.Minute),
	}
}

// Targeted returns n addressed to recipient.
func Targeted(n model.Notification, recipient string) model.Notification {
	n.RecipientID = &recipient
	return n
}

// IDs lists the ids of list in order.
func IDs(list []model.Notification) []string {
	ids := make([]string, len(list))
	for i, n := range list {
		ids[i] = n.ID
	}
	return ids
}
