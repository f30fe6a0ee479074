package filterdsl

import (
	"errors"
	"strings"
	"testing"
)

func TestTranslate_Empty(t *testing.T) {
	sql, params, err := Translate(Filter{}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sql != "" || params != nil {
		t.Fatalf("expected empty translation, got %q %v", sql, params)
	}
}

func TestTranslate_UnknownFieldRejected(t *testing.T) {
	f := Filter{Conditions: []Condition{{Field: "bogus", Op: OpEq, Value: "x"}}}
	_, _, err := Translate(f, 0)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestTranslate_ComparisonRequiresTemporal(t *testing.T) {
	f := Filter{Conditions: []Condition{{Field: "lang", Op: OpGt, Value: "ts"}}}
	_, _, err := Translate(f, 0)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for non-temporal comparison, got %v", err)
	}
}

func TestTranslate_ParamsStartAtOffsetPlusOne(t *testing.T) {
	f := Filter{Conditions: []Condition{
		{Field: "lang", Op: OpEq, Value: "ts"},
		{Field: "ingestedAt", Op: OpBetween, Range: &Range{Low: "2023-01-01", High: "2023-12-31"}},
	}, Combine: And}
	sql, params, err := Translate(f, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, "c.lang = $5") {
		t.Fatalf("expected param numbering from offset+1, got %q", sql)
	}
	if !strings.Contains(sql, "d.ingested_at >= $6 AND d.ingested_at <= $7") {
		t.Fatalf("expected between to render as two comparisons, got %q", sql)
	}
	if len(params) != 3 {
		t.Fatalf("expected 3 params, got %d", len(params))
	}
	if !strings.HasPrefix(sql, " AND (") {
		t.Fatalf("expected sql to begin with \" AND (\", got %q", sql)
	}
}

func TestParseFlat_ConjunctionOfEq(t *testing.T) {
	f := ParseFlat(map[string]any{"lang": "go", "docType": "code"})
	if f.Combine != And {
		t.Fatalf("expected and combine, got %s", f.Combine)
	}
	for _, c := range f.Conditions {
		if c.Op != OpEq {
			t.Fatalf("expected eq conditions, got %s", c.Op)
		}
	}
}

func TestParseJSON_LegacyFlatObject(t *testing.T) {
	f, err := ParseJSON([]byte(`{"lang":"go"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Conditions) != 1 || f.Conditions[0].Field != "lang" {
		t.Fatalf("unexpected filter: %#v", f)
	}
}

func TestTranslate_InNotEmpty(t *testing.T) {
	f := Filter{Conditions: []Condition{{Field: "repoId", Op: OpIn, Values: []any{"a", "b"}}}}
	_, _, err := Translate(f, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f2 := Filter{Conditions: []Condition{{Field: "repoId", Op: OpIn}}}
	if _, _, err := Translate(f2, 0); err == nil {
		t.Fatalf("expected error for empty values")
	}
}
