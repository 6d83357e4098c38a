package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MLotfy88/Medi-Tempo/entities"
)

// testCLI runs commands against a file catalog private to the test
type testCLI struct {
	t        *testing.T
	dataPath string
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	return &testCLI{t: t, dataPath: filepath.Join(t.TempDir(), "catalog.json")}
}

func (c *testCLI) run(args ...string) (stdout, stderr string, code int) {
	c.t.Helper()

	var out, errOut bytes.Buffer
	full := append([]string{"--storage", "file", "--data-path", c.dataPath}, args...)
	code = Run(context.Background(), &out, &errOut, full)
	return out.String(), errOut.String(), code
}

// ids runs a listing command with --json and returns the record ids
func (c *testCLI) ids(args ...string) []string {
	c.t.Helper()

	stdout, stderr, code := c.run(append([]string{"--json"}, args...)...)
	if code != 0 {
		c.t.Fatalf("%v exited %d: %s", args, code, stderr)
	}

	var meds []entities.Medication
	if err := json.Unmarshal([]byte(stdout), &meds); err != nil {
		c.t.Fatalf("invalid JSON output %q: %v", stdout, err)
	}
	ids := make([]string, 0, len(meds))
	for _, m := range meds {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestUsage(t *testing.T) {
	c := newTestCLI(t)

	stdout, _, code := c.run()
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d", code)
	}
	for _, want := range []string{"Commands:", "search <query>", "dose", "Global flags:", "--storage"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Usage missing %q:\n%s", want, stdout)
		}
	}

	_, stderr, code := c.run("frobnicate")
	if code != 1 || !strings.Contains(stderr, "unknown command: frobnicate") {
		t.Errorf("Expected unknown command error, got code=%d stderr=%q", code, stderr)
	}
}

func TestCommandHelp(t *testing.T) {
	c := newTestCLI(t)

	stdout, _, code := c.run("dose", "--help")
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d", code)
	}
	for _, want := range []string{"Usage: meditempo [global flags] dose", "--weight", "--unit"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Help missing %q:\n%s", want, stdout)
		}
	}

	_, stderr, code := c.run("search", "--bogus", "x")
	if code != 1 || !strings.Contains(stderr, "unknown flag") {
		t.Errorf("Expected flag error, got code=%d stderr=%q", code, stderr)
	}
}

func TestSearchAndFilter(t *testing.T) {
	c := newTestCLI(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"brand substring", []string{"search", "amo"}, []string{"1", "3"}},
		{"brand ignores case", []string{"search", "LORA"}, []string{"4"}},
		{"ingredient mode", []string{"search", "--mode", "ingredient", "acetaminophen"}, []string{"1"}},
		{"search with filter", []string{"search", "amo", "--availability", "In Stock"}, []string{"1"}},
		{"no match", []string{"search", "zzz"}, []string{}},
		{"empty query matches all", []string{"search", ""}, []string{"1", "2", "3", "4", "5", "7", "9"}},
		{"filter price", []string{"filter", "--price", "Low"}, []string{"1"}},
		{"filter two dimensions", []string{"filter", "--price", "Medium", "--availability", "Prescription Only"}, []string{"3"}},
		{"filter category list", []string{"filter", "--category", "antihistamine,antacid"}, []string{"4", "5", "9"}},
		{"filter nothing", []string{"filter"}, []string{"1", "2", "3", "4", "5", "7", "9"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, c.ids(tt.args...)); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSearchErrors(t *testing.T) {
	c := newTestCLI(t)

	tests := []struct {
		name       string
		args       []string
		wantStderr string
	}{
		{"missing query", []string{"search"}, "exactly one query"},
		{"bad mode", []string{"search", "--mode", "color", "amo"}, "invalid search mode"},
		{"dangerous query", []string{"search", "<script>"}, "invalid query"},
		{"bad filter", []string{"filter", "--category", "drop table x"}, "invalid filter"},
		{"filter args", []string{"filter", "extra"}, "takes no arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := c.run(tt.args...)
			if code != 1 {
				t.Errorf("Expected exit 1, got %d", code)
			}
			if !strings.Contains(stderr, tt.wantStderr) {
				t.Errorf("stderr=%q, want to contain %q", stderr, tt.wantStderr)
			}
		})
	}
}

func TestTableOutput(t *testing.T) {
	c := newTestCLI(t)

	stdout, _, code := c.run("search", "ibu")
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d", code)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header and one row, got %q", stdout)
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[1], "Ibuprofen 400mg") {
		t.Errorf("Unexpected table %q", stdout)
	}

	stdout, _, _ = c.run("search", "zzz")
	if strings.TrimSpace(stdout) != "no medications found" {
		t.Errorf("Unexpected empty output %q", stdout)
	}
}

func TestShow(t *testing.T) {
	c := newTestCLI(t)

	stdout, _, code := c.run("show", "3")
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d", code)
	}
	for _, want := range []string{"3  Amoxicillin 250mg", "(Medium)", "available:   false", "alternatives:", "Azithromycin 250mg"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("show output missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, code = c.run("--json", "show", "9")
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d", code)
	}
	var med entities.Medication
	if err := json.Unmarshal([]byte(stdout), &med); err != nil || med.Name != "Cetirizine 10mg" {
		t.Errorf("Unexpected JSON %q (err %v)", stdout, err)
	}

	_, stderr, code := c.run("show", "404")
	if code != 1 || !strings.Contains(stderr, "medication not found") {
		t.Errorf("Expected not found, got code=%d stderr=%q", code, stderr)
	}

	_, stderr, code = c.run("show", "a/b")
	if code != 1 || !strings.Contains(stderr, "invalid id") {
		t.Errorf("Expected invalid id, got code=%d stderr=%q", code, stderr)
	}
}

func TestDose(t *testing.T) {
	c := newTestCLI(t)

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"by id", []string{"dose", "--id", "1", "--weight", "25"}, 0, "Paracetamol 500mg: 375mg every 6 hours", ""},
		{"by catalog name", []string{"dose", "ibuprofen 400mg", "-w", "20"}, 0, "Ibuprofen 400mg: 200mg every 8 hours", ""},
		{"pounds", []string{"dose", "--id", "2", "--weight", "10", "--unit", "lb"}, 0, "45mg", ""},
		{"unknown name uses default", []string{"dose", "Tylenol", "--weight", "70"}, 0, "Tylenol: 350mg as directed", ""},
		{"over maximum warns", []string{"dose", "--id", "1", "--weight", "70"}, 1, "1050mg", "warning: Dose exceeds recommended maximum of 1000mg"},
		{"unknown id", []string{"dose", "--id", "404", "--weight", "70"}, 1, "", "medication not found"},
		{"missing weight", []string{"dose", "--id", "1"}, 1, "", "--weight is required"},
		{"missing medication", []string{"dose", "--weight", "70"}, 1, "", "name or --id is required"},
		{"zero weight", []string{"dose", "--id", "1", "--weight", "0"}, 1, "", "greater than zero"},
		{"bad unit", []string{"dose", "--id", "1", "--weight", "5", "--unit", "st"}, 1, "", "unit must be"},
		{"too heavy", []string{"dose", "--id", "1", "--weight", "700"}, 1, "", "weight too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, code := c.run(tt.args...)
			if code != tt.wantCode {
				t.Errorf("exit=%d, want %d (stderr %q)", code, tt.wantCode, stderr)
			}
			if !strings.Contains(stdout, tt.wantStdout) {
				t.Errorf("stdout=%q, want to contain %q", stdout, tt.wantStdout)
			}
			if !strings.Contains(stderr, tt.wantStderr) {
				t.Errorf("stderr=%q, want to contain %q", stderr, tt.wantStderr)
			}
		})
	}
}

func TestDoseJSON(t *testing.T) {
	c := newTestCLI(t)

	stdout, _, code := c.run("--json", "dose", "--id", "3", "--weight", "20")
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d", code)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	want := map[string]any{
		"medicationName": "Amoxicillin 250mg",
		"dosage":         float64(500),
		"unit":           "mg",
		"frequency":      "every 12 hours",
		"isSafe":         true,
		"rule":           "amoxicillin",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dose JSON mismatch (-want +got):\n%s", diff)
	}
}

func TestImport(t *testing.T) {
	c := newTestCLI(t)

	csvPath := filepath.Join(t.TempDir(), "batch.csv")
	content := "id,name,active_ingredient,price,category,availability\n" +
		"100,Naproxen 220mg,Naproxen,16.99,Anti-inflammatory,yes\n" +
		"1,Paracetamol 1g,Acetaminophen,14.00,Pain Relief,yes\n" +
		"101,Broken,Brokenium,abc,Misc,yes\n" +
		"102,Cephalexin 500mg,Cephalexin,22.50,Antibiotic,no\n"
	if err := os.WriteFile(csvPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := c.run("import", csvPath)
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d (stderr %q)", code, stderr)
	}
	if got, want := strings.TrimSpace(stdout), "added 2, skipped 1, total 9"; got != want {
		t.Errorf("stdout=%q, want %q", got, want)
	}
	if !strings.Contains(stderr, "skipped line 4: price") {
		t.Errorf("Expected the rejected row on stderr, got %q", stderr)
	}

	// The second run sees the persisted catalog
	if diff := cmp.Diff([]string{"3", "7", "102"}, c.ids("filter", "--category", "antibiotic")); diff != "" {
		t.Errorf("ids mismatch after import (-want +got):\n%s", diff)
	}

	stdout, _, _ = c.run("import", csvPath)
	if got, want := strings.TrimSpace(stdout), "added 0, skipped 3, total 9"; got != want {
		t.Errorf("re-import stdout=%q, want %q", got, want)
	}
}

func TestImportErrors(t *testing.T) {
	c := newTestCLI(t)

	badPath := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(badPath, []byte("name,active_ingredient,price,category,availability\nA,B,x,C,yes\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		args       []string
		wantStderr string
	}{
		{"no source", []string{"import"}, "either one file or --url"},
		{"file and url", []string{"import", badPath, "--url", "http://example.com/x.csv"}, "either one file or --url"},
		{"missing file", []string{"import", filepath.Join(t.TempDir(), "nope.csv")}, "failed to open"},
		{"no valid rows", []string{"import", badPath}, "nothing imported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := c.run(tt.args...)
			if code != 1 {
				t.Errorf("Expected exit 1, got %d", code)
			}
			if !strings.Contains(stderr, tt.wantStderr) {
				t.Errorf("stderr=%q, want to contain %q", stderr, tt.wantStderr)
			}
		})
	}

	if diff := cmp.Diff(7, len(c.ids("filter"))); diff != "" {
		t.Errorf("catalog changed after failed imports (-want +got):\n%s", diff)
	}
}

func TestInfo(t *testing.T) {
	c := newTestCLI(t)

	stdout, stderr, code := c.run("info")
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d (stderr %q)", code, stderr)
	}
	for _, want := range []string{"records:       7", "unavailable:   1", "zero price:    0"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("info missing %q:\n%s", want, stdout)
		}
	}
	if strings.Contains(stdout, "last updated:  never") {
		t.Errorf("Expected the seed install to set lastUpdated:\n%s", stdout)
	}
}

func TestFallbackWarning(t *testing.T) {
	c := newTestCLI(t)

	if err := os.WriteFile(c.dataPath, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := c.run("search", "amo")
	if code != 1 {
		t.Errorf("Expected exit 1 while serving built-in records, got %d", code)
	}
	if !strings.Contains(stdout, "Amoxicillin 250mg") {
		t.Errorf("Expected results from the built-in records, got %q", stdout)
	}
	if !strings.Contains(stderr, "warning: storage could not be read") {
		t.Errorf("Expected fallback warning, got %q", stderr)
	}
}

func TestImportedNameWithParentheses(t *testing.T) {
	c := newTestCLI(t)

	csvPath := filepath.Join(t.TempDir(), "tylenol.csv")
	content := "id,name,active_ingredient,price,category,availability\n" +
		"med-002,Tylenol (Paracetamol) 500mg,Acetaminophen,9.99,Pain Relief,yes\n"
	if err := os.WriteFile(csvPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, stderr, code := c.run("import", csvPath); code != 0 {
		t.Fatalf("import exited %d: %s", code, stderr)
	}

	if diff := cmp.Diff([]string{"med-002"}, c.ids("search", "Tylenol (")); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	stdout, stderr, code := c.run("dose", "Tylenol (Paracetamol) 500mg", "--weight", "20")
	if code != 0 {
		t.Fatalf("dose exited %d: %s", code, stderr)
	}
	if want := "Tylenol (Paracetamol) 500mg: 300mg every 6 hours"; !strings.Contains(stdout, want) {
		t.Errorf("stdout=%q, want to contain %q", stdout, want)
	}

	if stdout, _, _ := c.run("show", "med-002"); !strings.Contains(stdout, "med-002  Tylenol (Paracetamol) 500mg") {
		t.Errorf("Unexpected show output %q", stdout)
	}
}
