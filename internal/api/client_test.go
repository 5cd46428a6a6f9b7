package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/julianstephens/estimator/internal/models"
)

func setupClientTest(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "secret", WithRetry(1, time.Millisecond))
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func TestMaterialTypes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/estimator/api/material-types", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(w, `["Wire", "", "Boxes", "Assemblies"]`)
	})
	c := setupClientTest(t, mux)

	got, err := c.MaterialTypes(context.Background())
	if err != nil {
		t.Fatalf("MaterialTypes() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"Assemblies", "Wire", "Boxes"}, got); diff != "" {
		t.Errorf("MaterialTypes mismatch (-want +got):\n%s", diff)
	}
}

func TestMaterialDescriptions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/estimator/api/material-descriptions", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "Wire" {
			writeJSON(w, `[]`)
			return
		}
		writeJSON(w, `[
			{"id": 12, "item_description": "12/2 NM-B", "price": 50, "labor_unit": 1, "unit_quantity_size": 100, "price_each": 0.5, "labor_each": 0.01},
			{"id": "w10", "description": "10 AWG", "price": 8, "labor_unit": 2, "unit_quantity_size": 4},
			{"item_description": "no id"}
		]`)
	})
	c := setupClientTest(t, mux)

	got, err := c.MaterialDescriptions(context.Background(), "Wire")
	if err != nil {
		t.Fatalf("MaterialDescriptions() failed: %v", err)
	}
	want := []models.MaterialOption{
		{ID: "12", Description: "12/2 NM-B", UnitPrice: 0.5, LaborUnitHours: 0.01, Unit: "1", PackSize: 100},
		{ID: "w10", Description: "10 AWG", UnitPrice: 2, LaborUnitHours: 0.5, PackSize: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MaterialDescriptions mismatch (-want +got):\n%s", diff)
	}

	empty, err := c.MaterialDescriptions(context.Background(), "  ")
	if err != nil || empty != nil {
		t.Errorf("blank type = %v, %v; want no request and no options", empty, err)
	}
}

func TestAssembliesAndRollup(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/estimator/api/assemblies", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `[{"id": 7, "name": "Duplex receptacle", "item_description": "Duplex receptacle"}]`)
	})
	mux.HandleFunc("/estimator/api/assemblies/7/rollup", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"assembly_id": 7, "material_cost_total": 12.5, "labor_hours_total": 0.7, "component_count": 2}`)
	})
	c := setupClientTest(t, mux)
	ctx := context.Background()

	list, err := c.Assemblies(ctx)
	if err != nil {
		t.Fatalf("Assemblies() failed: %v", err)
	}
	if diff := cmp.Diff([]models.Assembly{{ID: "7", Name: "Duplex receptacle"}}, list); diff != "" {
		t.Errorf("Assemblies mismatch (-want +got):\n%s", diff)
	}

	rollup, err := c.AssemblyRollup(ctx, "7")
	if err != nil {
		t.Fatalf("AssemblyRollup() failed: %v", err)
	}
	want := models.AssemblyRollup{AssemblyID: "7", MaterialCostTotal: 12.5, LaborHoursTotal: 0.7, ComponentCount: 2}
	if diff := cmp.Diff(want, rollup); diff != "" {
		t.Errorf("AssemblyRollup mismatch (-want +got):\n%s", diff)
	}

	_, err = c.AssemblyRollup(ctx, "404")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("AssemblyRollup(unknown) error = %v, want 404 StatusError", err)
	}
}

func TestDjeCascade(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/dje-categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `["Equipment", "Permits"]`)
	})
	mux.HandleFunc("/api/dje-subcategories", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("category") == "Equipment" {
			writeJSON(w, `["Lifts"]`)
			return
		}
		writeJSON(w, `[]`)
	})
	mux.HandleFunc("/api/dje-descriptions", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("category") != "Equipment" || q.Get("subcategory") != "Lifts" {
			writeJSON(w, `[]`)
			return
		}
		writeJSON(w, `[{"id": 1, "description": "Scissor lift", "cost": "450.00"}, {"id": 2, "description": "Boom lift", "default_unit_cost": 1200}]`)
	})
	c := setupClientTest(t, mux)
	ctx := context.Background()

	cats, err := c.DjeCategories(ctx)
	if err != nil || len(cats) != 2 {
		t.Fatalf("DjeCategories() = %v, %v", cats, err)
	}
	subs, err := c.DjeSubcategories(ctx, "Equipment")
	if err != nil || len(subs) != 1 || subs[0] != "Lifts" {
		t.Fatalf("DjeSubcategories() = %v, %v", subs, err)
	}
	descs, err := c.DjeDescriptions(ctx, "Equipment", "Lifts")
	if err != nil {
		t.Fatalf("DjeDescriptions() failed: %v", err)
	}
	want := []models.DjeOption{
		{ID: "1", Description: "Scissor lift", UnitCost: 450},
		{ID: "2", Description: "Boom lift", UnitCost: 1200},
	}
	if diff := cmp.Diff(want, descs); diff != "" {
		t.Errorf("DjeDescriptions mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshot(t *testing.T) {
	var fallbacks atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/estimates/1.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"id": 1, "settings_snapshot": {"pricing": {"labor_rate": "92.50", "margin_percent": 15, "sales_tax_percent": 8}, "settings_version": 3}}`)
	})
	mux.HandleFunc("/estimates/2.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"id": 2, "settings_snapshot": {}}`)
	})
	mux.HandleFunc("/admin/settings.json", func(w http.ResponseWriter, r *http.Request) {
		fallbacks.Add(1)
		writeJSON(w, `{"pricing": {"overhead_percent": 25}}`)
	})
	c := setupClientTest(t, mux)
	ctx := context.Background()

	snap, err := c.Snapshot(ctx, "1")
	if err != nil {
		t.Fatalf("Snapshot(1) failed: %v", err)
	}
	want := models.DefaultSettings()
	want.LaborRate = 92.5
	want.MarginPercent = 15
	want.SalesTaxPercent = 8
	if diff := cmp.Diff(want, snap.Pricing); diff != "" {
		t.Errorf("Snapshot(1) pricing mismatch (-want +got):\n%s", diff)
	}
	if snap.Source != "estimate" || snap.Version != 3 {
		t.Errorf("Snapshot(1) source %q version %d", snap.Source, snap.Version)
	}

	snap, err = c.Snapshot(ctx, "2")
	if err != nil {
		t.Fatalf("Snapshot(2) failed: %v", err)
	}
	if snap.Source != "settings" || snap.Pricing.OverheadPercent != 25 {
		t.Errorf("Snapshot(2) = %+v, want settings fallback with overhead 25", snap)
	}
	if fallbacks.Load() != 1 {
		t.Errorf("settings fallback fetched %d times, want 1", fallbacks.Load())
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	var stored []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/estimates/9/payload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		stored, _ = io.ReadAll(r.Body)
		writeJSON(w, `{"ok": true, "id": 9}`)
	})
	mux.HandleFunc("/estimates/9/payload.json", func(w http.ResponseWriter, r *http.Request) {
		body := `{}`
		if stored != nil {
			body = string(stored)
		}
		writeJSON(w, `{"ok": true, "id": 9, "payload": `+body+`}`)
	})
	c := setupClientTest(t, mux)
	ctx := context.Background()

	if _, ok, err := c.LoadPayload(ctx, "9"); err != nil || ok {
		t.Fatalf("LoadPayload() before save = ok %v err %v, want empty", ok, err)
	}

	row := models.NewGridRow()
	row.MaterialType = "Wire"
	row.Quantity = 10
	payload := models.Payload{
		Grid:   models.GridEnvelope{V: 1, Rows: []models.GridRow{row}},
		Totals: models.GridTotals{MaterialCost: 25, LaborHours: 5, UpdatedAt: 1},
	}
	if err := c.SavePayload(ctx, "9", payload); err != nil {
		t.Fatalf("SavePayload() failed: %v", err)
	}
	var sent models.Payload
	if err := json.Unmarshal(stored, &sent); err != nil {
		t.Fatalf("server received invalid JSON: %v", err)
	}

	got, ok, err := c.LoadPayload(ctx, "9")
	if err != nil || !ok {
		t.Fatalf("LoadPayload() = ok %v err %v", ok, err)
	}
	if diff := cmp.Diff(payload, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestServerErrorsAreRetriedThenReported(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/dje-categories", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := setupClientTest(t, mux)

	if _, err := c.DjeCategories(context.Background()); err == nil {
		t.Fatal("expected error from failing server")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server called %d times, want 2 (one retry)", got)
	}
}

func TestInvalidJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/dje-categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `<html>login</html>`)
	})
	c := setupClientTest(t, mux)

	if _, err := c.DjeCategories(context.Background()); err == nil {
		t.Error("expected error for non-JSON response")
	}
}
