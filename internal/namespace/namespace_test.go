package namespace

import (
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		wantScope  string
		wantGrid   string
		wantTotals string
		wantDoc    string
		wantFast   bool
	}{
		{
			name:       "empty id is fast",
			id:         "",
			wantScope:  "fast",
			wantGrid:   "ee.fast.grid.v1",
			wantTotals: "ee.fast.totals",
			wantDoc:    "ee.fast.estimateData",
			wantFast:   true,
		},
		{
			name:       "blank id is fast",
			id:         "   ",
			wantScope:  "fast",
			wantGrid:   "ee.fast.grid.v1",
			wantTotals: "ee.fast.totals",
			wantDoc:    "ee.fast.estimateData",
			wantFast:   true,
		},
		{
			name:       "numeric estimate",
			id:         "42",
			wantScope:  "estimate:42",
			wantGrid:   "ee.estimate:42.grid.v1",
			wantTotals: "ee.estimate:42.totals",
			wantDoc:    "ee.estimate:42.estimateData",
		},
		{
			name:       "dots are escaped",
			id:         "1.5",
			wantScope:  "estimate:1%2E5",
			wantGrid:   "ee.estimate:1%2E5.grid.v1",
			wantTotals: "ee.estimate:1%2E5.totals",
			wantDoc:    "ee.estimate:1%2E5.estimateData",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := Resolve(tt.id)
			if k.Scope != tt.wantScope {
				t.Errorf("Scope = %q, want %q", k.Scope, tt.wantScope)
			}
			if k.GridKey != tt.wantGrid {
				t.Errorf("GridKey = %q, want %q", k.GridKey, tt.wantGrid)
			}
			if k.TotalsKey != tt.wantTotals {
				t.Errorf("TotalsKey = %q, want %q", k.TotalsKey, tt.wantTotals)
			}
			if k.DocumentKey != tt.wantDoc {
				t.Errorf("DocumentKey = %q, want %q", k.DocumentKey, tt.wantDoc)
			}
			if k.IsFast() != tt.wantFast {
				t.Errorf("IsFast() = %v, want %v", k.IsFast(), tt.wantFast)
			}
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	if Resolve("7") != Resolve("7") {
		t.Error("Resolve() is not deterministic")
	}
	if Resolve(" 7 ").EstimateID() != "7" {
		t.Errorf("EstimateID() = %q, want %q", Resolve(" 7 ").EstimateID(), "7")
	}
}

func TestScopesDoNotOverlap(t *testing.T) {
	scopes := []Keys{Resolve("1"), Resolve("1.5"), Resolve("15"), Resolve("1%2E5"), FastKeys()}
	for i, a := range scopes {
		for j, b := range scopes {
			if i == j {
				continue
			}
			for _, key := range b.All() {
				if a.Owns(key) {
					t.Errorf("scope %q owns key %q of scope %q", a.Scope, key, b.Scope)
				}
			}
			if strings.HasPrefix(b.Prefix, a.Prefix) {
				t.Errorf("prefix %q is a prefix of %q", a.Prefix, b.Prefix)
			}
		}
	}
}

func TestIsWritable(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"ee.fast.totals", true},
		{"ee.estimate:9.grid.v1", true},
		{"ee.session.booted", true},
		{"estimateData", false},
		{"grid.v1", false},
		{"totals", false},
		{"ee.fast.", false},
		{"ee.estimate:.totals", false},
		{"ee.estimate:9", false},
		{"other.key", false},
	}
	for _, tt := range tests {
		if got := IsWritable(tt.key); got != tt.want {
			t.Errorf("IsWritable(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		key    string
		scope  string
		id     string
		wantOK bool
	}{
		{"ee.fast.grid.v1", "fast", "", true},
		{"ee.estimate:12.totals", "estimate:12", "12", true},
		{"ee.estimate:1%2E5.estimateData", "estimate:1%2E5", "1.5", true},
		{"ee.estimate:50%25%2Eoff.grid.v1", "estimate:50%25%2Eoff", "50%.off", true},
		{"ee.session.booted", "", "", false},
		{"estimateData", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			k, ok := Parse(tt.key)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if k.Scope != tt.scope || k.EstimateID() != tt.id {
				t.Errorf("Parse(%q) = %q/%q, want %q/%q", tt.key, k.Scope, k.EstimateID(), tt.scope, tt.id)
			}
			if !k.Owns(tt.key) {
				t.Errorf("parsed scope does not own %q", tt.key)
			}
		})
	}
}

func TestScopes(t *testing.T) {
	got := Scopes([]string{
		"ee.estimate:3.grid.v1",
		"ee.fast.totals",
		"ee.estimate:3.totals",
		"totals",
		"ee.fast.grid.v1",
	})
	if len(got) != 2 || got[0].Scope != "estimate:3" || !got[1].IsFast() {
		t.Errorf("Scopes = %+v", got)
	}
}
