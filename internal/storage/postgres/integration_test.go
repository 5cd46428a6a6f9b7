package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/julianstephens/estimator/internal/bus"
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/models"
)

// TestStore_Integration exercises the store against a real database.
// Set POSTGRES_TEST_URL to run it, e.g.
// POSTGRES_TEST_URL="postgres://estimator_user@localhost:5432/estimator_test?sslmode=disable"
func TestStore_Integration(t *testing.T) {
	connStr := os.Getenv("POSTGRES_TEST_URL")
	if connStr == "" {
		t.Skip("POSTGRES_TEST_URL not set, skipping PostgreSQL integration test")
	}

	store := New(connStr)
	if err := store.Init(); err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	defer store.Close()

	t.Run("Settings", func(t *testing.T) {
		settings, err := store.GetSettings()
		if err != nil {
			t.Fatalf("Failed to get settings: %v", err)
		}
		settings.LaborRate = 77
		if err := store.SaveSettings(settings); err != nil {
			t.Fatalf("Failed to save settings: %v", err)
		}
		updated, err := store.GetSettings()
		if err != nil || updated.LaborRate != 77 {
			t.Errorf("GetSettings() = %+v, %v", updated, err)
		}
		_ = store.SaveSettings(models.DefaultSettings())
	})

	t.Run("KV", func(t *testing.T) {
		key := "ee.estimate:it.totals"
		if err := store.Set(key, []byte(`{"material_cost_price_sheet":1}`)); err != nil {
			t.Fatalf("Set() failed: %v", err)
		}
		v, ok, err := store.Get(key)
		if err != nil || !ok || len(v) == 0 {
			t.Fatalf("Get() = %q, %v, %v", v, ok, err)
		}
		keys, err := store.Keys("ee.estimate:it.")
		if err != nil || len(keys) != 1 {
			t.Errorf("Keys() = %v, %v", keys, err)
		}
		if err := store.Delete(key); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}

		wide := "ee.estimate:café.totals"
		if err := store.Set(wide, []byte(`{}`)); err != nil {
			t.Fatalf("Set() failed: %v", err)
		}
		keys, err = store.Keys("ee.estimate:café.")
		if err != nil || len(keys) != 1 || keys[0] != wide {
			t.Errorf("Keys() with a non-ASCII prefix = %v, %v", keys, err)
		}
		if err := store.Delete(wide); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
	})

	t.Run("Feed", func(t *testing.T) {
		other := New(connStr)
		if err := other.Load(); err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		defer other.Close()

		received := make(chan bus.StorageChange, 1)
		b := bus.New()
		b.Subscribe(constants.EventStorage, func(ev bus.Event) {
			received <- ev.Detail.(bus.StorageChange)
		})
		ctx, cancel := context.WithCancel(context.Background())
		b.Attach(ctx, store.Feed())
		defer func() {
			cancel()
			b.Wait()
		}()

		// Give the listener time to subscribe.
		time.Sleep(500 * time.Millisecond)
		if err := other.Set("ee.estimate:it.grid.v1", []byte(`{"v":1,"rows":[]}`)); err != nil {
			t.Fatalf("Set() failed: %v", err)
		}

		select {
		case c := <-received:
			if c.Key != "ee.estimate:it.grid.v1" {
				t.Errorf("received %+v", c)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for notification")
		}
		_ = other.Delete("ee.estimate:it.grid.v1")
	})
}
