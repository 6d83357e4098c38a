package importer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MLotfy88/Medi-Tempo/entities"
)

func TestParseFileSample(t *testing.T) {
	p := NewParser(0)

	res, err := p.ParseFile(context.Background(), filepath.Join("testdata", "sample.csv"))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}

	if res.Rows != 5 || len(res.RowErrors) != 0 {
		t.Fatalf("Expected 5 clean rows, got rows=%d errors=%v", res.Rows, res.RowErrors)
	}

	var ids []string
	for _, m := range res.Medications {
		ids = append(ids, m.ID)
	}
	if diff := cmp.Diff([]string{"csv-1", "csv-2", "csv-3", "csv-4", "csv-5"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	want := entities.Medication{
		ID:               "csv-1",
		Name:             "Amoxicillin 500mg",
		ActiveIngredient: "Amoxicillin",
		Price:            18.99,
		Category:         "Antibiotic",
		IsAvailable:      true,
		Description:      "A penicillin antibiotic that fights bacteria in the body.",
		DosageInfo:       "Adults: 250-500mg every 8 hours depending on infection severity.",
		SideEffects:      []string{"Diarrhea", "Stomach upset", "Vomiting", "Rash"},
		Storage:          "Store at room temperature away from moisture, heat, and light.",
		Warnings:         []string{"May cause allergic reactions in patients with penicillin allergy."},
	}
	if diff := cmp.Diff(want, res.Medications[0]); diff != "" {
		t.Errorf("First record mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLatin1Semicolon(t *testing.T) {
	p := NewParser(0)

	res, err := p.ParseFile(context.Background(), filepath.Join("testdata", "latin1_semicolon.csv"))
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(res.Medications) != 2 {
		t.Fatalf("Expected 2 records, got %d (errors %v)", len(res.Medications), res.RowErrors)
	}

	first := res.Medications[0]
	if first.ActiveIngredient != "Paracétamol" {
		t.Errorf("Expected decoded accent, got %q", first.ActiveIngredient)
	}
	if first.Price != 3.5 {
		t.Errorf("Expected decimal comma price 3.5, got %v", first.Price)
	}
	wantAlts := []entities.Alternative{
		{ID: "1", Name: "Paracetamol 500mg", Price: 12.99},
		{ID: "2", Name: "Ibuprofen 400mg", Price: 15.5},
	}
	if diff := cmp.Diff(wantAlts, first.Alternatives); diff != "" {
		t.Errorf("Alternatives mismatch (-want +got):\n%s", diff)
	}

	second := res.Medications[1]
	if second.IsAvailable {
		t.Error("Expected 'no' to parse as unavailable")
	}
	if second.Alternatives != nil {
		t.Errorf("Expected no alternatives, got %v", second.Alternatives)
	}
}

func TestParseReaderRowErrors(t *testing.T) {
	input := "\ufeffname,active_ingredient,price,category,availability\n" +
		"Good 1mg,Goodium,1.00,Misc,yes\n" +
		",Nameless,2.00,Misc,yes\n" +
		"Pricey,Pricium,abc,Misc,yes\n" +
		"Maybe,Maybium,3,Misc,perhaps\n" +
		"\n" +
		"Negative,Negium,-4,Misc,no\n"

	res, err := NewParser(0).ParseReader(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseReader failed: %v", err)
	}

	if res.Rows != 5 {
		t.Errorf("Expected 5 data rows (blank skipped), got %d", res.Rows)
	}
	if len(res.Medications) != 1 || res.Medications[0].Name != "Good 1mg" {
		t.Fatalf("Expected only the good row, got %+v", res.Medications)
	}

	type rowField struct {
		Line  int
		Field string
	}
	var got []rowField
	for _, e := range res.RowErrors {
		got = append(got, rowField{e.Line, e.Field})
	}
	want := []rowField{
		{3, "name"},
		{4, "price"},
		{5, "availability"},
		{7, "price"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Row errors mismatch (-want +got):\n%s", diff)
	}
}

func TestParseReaderRejectsUnaddressableIDs(t *testing.T) {
	input := "id,name,active_ingredient,price,category,availability,alternatives\n" +
		"MED 001,Tylenol (Paracetamol) 500mg,Acetaminophen,9.99,Pain Relief,yes,\n" +
		"med-002,Tylenol (Paracetamol) 500mg,Acetaminophen,9.99,Pain Relief,yes,\n" +
		"med-003,Panadol 500mg,Acetaminophen,8.00,Pain Relief,yes,x/y:Other:1\n"

	res, err := NewParser(0).ParseReader(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseReader failed: %v", err)
	}

	if len(res.Medications) != 1 || res.Medications[0].ID != "med-002" {
		t.Fatalf("Expected only med-002, got %+v", res.Medications)
	}

	var fields []string
	for _, e := range res.RowErrors {
		fields = append(fields, e.Field)
	}
	if diff := cmp.Diff([]string{"id", "alternatives[0].id"}, fields); diff != "" {
		t.Errorf("Row error fields mismatch (-want +got):\n%s", diff)
	}
}

func TestParseReaderGeneratesStableIDs(t *testing.T) {
	header := "name,active_ingredient,price,category,availability\n"
	first, err := NewParser(0).ParseReader(context.Background(),
		strings.NewReader(header+"Aspirin 325mg,Acetylsalicylic acid,10.99,Pain Relief,1\n"))
	if err != nil {
		t.Fatalf("ParseReader failed: %v", err)
	}
	second, err := NewParser(0).ParseReader(context.Background(),
		strings.NewReader(header+"ASPIRIN 325MG,acetylsalicylic ACID,11.50,Pain Relief,0\n"))
	if err != nil {
		t.Fatalf("ParseReader failed: %v", err)
	}

	id := first.Medications[0].ID
	if len(id) != 36 {
		t.Fatalf("Expected a UUID, got %q", id)
	}
	if second.Medications[0].ID != id {
		t.Errorf("Expected the same id on re-import, got %q and %q", id, second.Medications[0].ID)
	}
}

func TestParseReaderHeaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrInvalidHeader},
		{"missing columns", "name,price\nA,1\n", ErrInvalidHeader},
		{"duplicate column", "name,name,active_ingredient,price,category,availability\n", ErrInvalidHeader},
		{"header only", "name,active_ingredient,price,category,availability\n", ErrNoValidRows},
		{"all rows invalid", "name,active_ingredient,price,category,availability\nA,B,x,C,yes\n", ErrNoValidRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(0).ParseReader(context.Background(), strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseReaderTabAndAliases(t *testing.T) {
	input := "Name\tIngredient\tPrice\tCategory\tIn Stock\n" +
		"Cetirizine 10mg\tCetirizine\t16.75\tAntihistamine\tin stock\n"

	res, err := NewParser(0).ParseReader(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseReader failed: %v", err)
	}
	if got := res.Medications[0]; got.ActiveIngredient != "Cetirizine" || !got.IsAvailable {
		t.Errorf("Unexpected record %+v", got)
	}
}

func TestParseReaderTooLarge(t *testing.T) {
	input := "name,active_ingredient,price,category,availability\n"
	_, err := NewParser(10).ParseReader(context.Background(), strings.NewReader(input))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}
}

func TestParseReaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	raw, err := os.ReadFile(filepath.Join("testdata", "sample.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewParser(0).ParseReader(ctx, strings.NewReader(string(raw))); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{"a,b,c", ','},
		{"a;b;c", ';'},
		{"a\tb\tc", '\t'},
		{`"a;b",c`, ','},
		{"single", ','},
	}
	for _, tt := range tests {
		if got := detectDelimiter([]byte(tt.line + "\n")); got != tt.want {
			t.Errorf("detectDelimiter(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestDownload(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "sample.csv"))
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/catalog.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	p := NewParser(0).WithHTTPClient(srv.Client())

	res, err := p.Download(context.Background(), srv.URL+"/catalog.csv")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if len(res.Medications) != 5 {
		t.Errorf("Expected 5 records, got %d", len(res.Medications))
	}

	if _, err := p.Download(context.Background(), srv.URL+"/missing.csv"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("Expected status error, got %v", err)
	}
}
