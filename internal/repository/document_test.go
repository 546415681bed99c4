package repository

import (
	"reflect"
	"testing"

	"github.com/goccy/go-json"
	"github.com/user/movierec/internal/model"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestClean_StripsUnsetRecursively(t *testing.T) {
	in := map[string]any{
		"a": Unset,
		"b": map[string]any{"c": Unset, "d": 1},
		"e": []any{Unset, 2},
		"f": nil,
		"g": []any{map[string]any{"h": Unset, "i": "x"}},
	}
	want := map[string]any{
		"b": map[string]any{"d": 1},
		"e": []any{2},
		"f": nil,
		"g": []any{map[string]any{"i": "x"}},
	}

	got := Clean(in)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Clean() = %#v, want %#v", got, want)
	}
	if _, ok := in["a"]; !ok {
		t.Error("Clean() modified its input")
	}
}

func TestClean_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"string", "hello"},
		{"number", 42.5},
		{"nil", nil},
		{"bool", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); !reflect.DeepEqual(got, tt.in) {
				t.Errorf("Clean(%v) = %v", tt.in, got)
			}
		})
	}
}

func TestDocumentFromMetadata(t *testing.T) {
	m := model.MovieMetadata{
		ID:       603,
		Title:    strPtr("The Matrix"),
		Runtime:  floatPtr(136),
		Budget:   floatPtr(63000000),
		Genres:   []string{"Action", "Science Fiction"},
		Director: nil,
	}

	doc := DocumentFromMetadata(m)
	if doc.ID != 603 {
		t.Errorf("ID = %d, want 603", doc.ID)
	}

	present := map[string]any{
		"id":          int64(603),
		"title":       "The Matrix",
		"runtime":     136.0,
		"budget":      63000000.0,
		"genres":      []any{"Action", "Science Fiction"},
		"tagline":     nil,
		"director":    nil,
		"posterUrl":   nil,
		"releaseDate": nil,
	}
	for key, want := range present {
		got, ok := doc.Fields[key]
		if !ok {
			t.Errorf("field %q missing", key)
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("field %q = %#v, want %#v", key, got, want)
		}
	}

	for _, key := range []string{"overview", "status", "revenue", "cast", "productionCompanies", "productionCountries", "spokenLanguages"} {
		if _, ok := doc.Fields[key]; ok {
			t.Errorf("field %q should be left out when absent", key)
		}
	}
}

func TestMetadataFromFields_RoundTrip(t *testing.T) {
	m := model.MovieMetadata{
		ID:          11,
		Title:       strPtr("Star Wars"),
		ReleaseDate: strPtr("1977-05-25"),
		Cast:        []string{"Mark Hamill"},
	}
	got, err := MetadataFromFields(DocumentFromMetadata(m).Fields)
	if err != nil {
		t.Fatalf("MetadataFromFields() error = %v", err)
	}
	if got.ID != 11 || got.Title == nil || *got.Title != "Star Wars" {
		t.Errorf("MetadataFromFields() = %+v", got)
	}
	if got.ReleaseDate == nil || *got.ReleaseDate != "1977-05-25" {
		t.Errorf("ReleaseDate = %v, want 1977-05-25", got.ReleaseDate)
	}
	if !reflect.DeepEqual(got.Cast, []string{"Mark Hamill"}) {
		t.Errorf("Cast = %v", got.Cast)
	}
	if got.Tagline != nil {
		t.Errorf("Tagline = %v, want nil", *got.Tagline)
	}
}

func TestDocumentKey(t *testing.T) {
	if got := DocumentKey(550); got != "550" {
		t.Errorf("DocumentKey(550) = %q", got)
	}
}

// A null in a non-nullable field cannot be told apart from an absent one once
// decoded, so both are left out; nullable fields keep their null.
func TestDocumentFromMetadata_ExplicitNulls(t *testing.T) {
	var m model.MovieMetadata
	line := `{"id":7,"title":null,"overview":null,"budget":null,"tagline":null,"director":null}`
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatal(err)
	}

	doc := DocumentFromMetadata(m)
	for _, key := range []string{"title", "overview", "budget"} {
		if _, ok := doc.Fields[key]; ok {
			t.Errorf("field %q stored, want it left out", key)
		}
	}
	for _, key := range []string{"tagline", "director"} {
		if v, ok := doc.Fields[key]; !ok || v != nil {
			t.Errorf("field %q = %v (present %v), want stored null", key, v, ok)
		}
	}
}
