// Package importer parses medication batches from CSV files, uploads and
// remote URLs.
package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/MLotfy88/Medi-Tempo/entities"
	"github.com/MLotfy88/Medi-Tempo/interfaces"
	"github.com/MLotfy88/Medi-Tempo/logging"
	"github.com/MLotfy88/Medi-Tempo/validation"
)

var (
	// ErrInvalidHeader means the first line is missing or lacks a required column
	ErrInvalidHeader = errors.New("invalid CSV header")
	// ErrNoValidRows means every data row was rejected, or there were none
	ErrNoValidRows = errors.New("no valid rows in CSV")
	// ErrTooLarge means the input exceeded the configured size limit
	ErrTooLarge = errors.New("CSV input too large")
)

const (
	DefaultMaxBytes        = 50 * 1024 * 1024
	DefaultDownloadTimeout = 5 * time.Minute
)

// Column keys after normalization (lowercase, no spaces, underscores or hyphens)
const (
	colID           = "id"
	colName         = "name"
	colIngredient   = "activeingredient"
	colPrice        = "price"
	colCategory     = "category"
	colAvailability = "availability"
	colDescription  = "description"
	colDosageInfo   = "dosageinfo"
	colSideEffects  = "sideeffects"
	colStorage      = "storage"
	colWarnings     = "warnings"
	colAlternatives = "alternatives"
)

var requiredColumns = []string{colName, colIngredient, colPrice, colCategory, colAvailability}

var columnAliases = map[string]string{
	"isavailable": colAvailability,
	"available":   colAvailability,
	"instock":     colAvailability,
	"ingredient":  colIngredient,
	"dosage":      colDosageInfo,
}

// idNamespace seeds the UUIDv5 ids of rows without an id column, so a file
// imported twice produces the same ids.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("meditempo.medication"))

// Parser implements interfaces.Importer
type Parser struct {
	client    *http.Client
	maxBytes  int64
	validator interfaces.DataValidator
}

var _ interfaces.Importer = (*Parser)(nil)

// NewParser returns a parser that accepts inputs up to maxBytes (0 means
// DefaultMaxBytes) and downloads with a DefaultDownloadTimeout client.
func NewParser(maxBytes int64) *Parser {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Parser{
		client:    &http.Client{Timeout: DefaultDownloadTimeout},
		maxBytes:  maxBytes,
		validator: validation.NewDataValidator(),
	}
}

// WithHTTPClient replaces the download client
func (p *Parser) WithHTTPClient(c *http.Client) *Parser {
	p.client = c
	return p
}

// ParseFile parses the CSV file at path
func (p *Parser) ParseFile(ctx context.Context, path string) (*entities.ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("Failed to close import file", "path", path, "error", err)
		}
	}()

	return p.ParseReader(ctx, f)
}

// ParseReader parses a CSV document. Invalid rows are reported in the
// result and skipped. The error is ErrInvalidHeader or ErrNoValidRows
// (possibly wrapped) when nothing can be imported; the result is still
// returned alongside ErrNoValidRows so callers can show the row errors.
func (p *Parser) ParseReader(ctx context.Context, r io.Reader) (*entities.ParseResult, error) {
	raw, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if int64(len(raw)) > p.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, p.maxBytes)
	}

	text, err := decode(raw)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(text))
	cr.Comma = detectDelimiter(text)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	result := &entities.ParseResult{
		Medications: []entities.Medication{},
		RowErrors:   []entities.RowError{},
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				result.Rows++
				result.RowErrors = append(result.RowErrors, entities.RowError{Line: pe.Line, Message: pe.Err.Error()})
				continue
			}
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}
		result.Rows++

		med, rowErrs := p.buildMedication(record, columns, line)
		if len(rowErrs) > 0 {
			result.RowErrors = append(result.RowErrors, rowErrs...)
			continue
		}
		result.Medications = append(result.Medications, med)
	}

	logging.Debug("CSV parsed",
		"rows", result.Rows,
		"valid", len(result.Medications),
		"rejected", len(result.RowErrors),
		"delimiter", string(cr.Comma))

	if len(result.Medications) == 0 {
		return result, fmt.Errorf("%w: %d rows read, %d rejected", ErrNoValidRows, result.Rows, len(result.RowErrors))
	}
	return result, nil
}

// decode returns UTF-8 text. UTF-8 input has its BOM removed, UTF-16 input
// with a BOM is transcoded, anything else is read as ISO-8859-1.
func decode(raw []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}), bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode UTF-16 input: %w", err)
		}
		return out, nil
	case utf8.Valid(raw):
		out, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode UTF-8 input: %w", err)
		}
		return out, nil
	default:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode ISO-8859-1 input: %w", err)
		}
		return out, nil
	}
}

// detectDelimiter picks the most frequent of , ; and TAB outside quotes on
// the first line, preferring the comma on ties.
func detectDelimiter(text []byte) rune {
	counts := map[rune]int{',': 0, ';': 0, '\t': 0}
	inQuotes := false

	for _, r := range string(firstLine(text)) {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case !inQuotes:
			if _, ok := counts[r]; ok {
				counts[r]++
			}
		}
	}

	best := ','
	for _, r := range []rune{';', '\t'} {
		if counts[r] > counts[best] {
			best = r
		}
	}
	return best
}

func firstLine(text []byte) []byte {
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

func normalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(name)
	if canonical, ok := columnAliases[name]; ok {
		return canonical
	}
	return name
}

func mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeColumn(h)
		if key == "" {
			continue
		}
		if _, dup := columns[key]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidHeader, h)
		}
		columns[key] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns %s", ErrInvalidHeader, strings.Join(missing, ", "))
	}
	return columns, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func (p *Parser) buildMedication(record []string, columns map[string]int, line int) (entities.Medication, []entities.RowError) {
	field := func(col string) string {
		i, ok := columns[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rowErrs []entities.RowError
	fail := func(col, msg string) {
		rowErrs = append(rowErrs, entities.RowError{Line: line, Field: col, Message: msg})
	}

	med := entities.Medication{
		ID:               field(colID),
		Name:             field(colName),
		ActiveIngredient: field(colIngredient),
		Category:         field(colCategory),
		Description:      field(colDescription),
		DosageInfo:       field(colDosageInfo),
		SideEffects:      splitList(field(colSideEffects)),
		Storage:          field(colStorage),
		Warnings:         splitList(field(colWarnings)),
	}

	price, err := parsePrice(field(colPrice))
	if err != nil {
		fail("price", err.Error())
	}
	med.Price = price

	available, err := parseAvailability(field(colAvailability))
	if err != nil {
		fail("availability", err.Error())
	}
	med.IsAvailable = available

	alternatives, err := parseAlternatives(field(colAlternatives))
	if err != nil {
		fail("alternatives", err.Error())
	}
	med.Alternatives = alternatives

	if med.ID == "" {
		med.ID = generatedID(med.Name, med.ActiveIngredient)
	}

	if fieldErrs := validation.ValidateStruct(&med); len(fieldErrs) > 0 {
		for _, fe := range fieldErrs {
			fail(fe.Field, fe.Message)
		}
	} else if len(rowErrs) == 0 {
		if err := p.validator.ValidateMedication(&med); err != nil {
			fail("", err.Error())
		}
	}

	if len(rowErrs) > 0 {
		return entities.Medication{}, rowErrs
	}
	return med, nil
}

func generatedID(name, ingredient string) string {
	key := strings.ToLower(name) + "\x00" + strings.ToLower(ingredient)
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// parsePrice accepts "12.50", "12,50" and an optional leading currency sign
func parsePrice(s string) (float64, error) {
	s = strings.TrimLeft(s, "$€£ ")
	if s == "" {
		return 0, fmt.Errorf("price is required")
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("price %q is not a number", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("price must not be negative")
	}
	if math.IsNaN(v) || v > 1e9 {
		return 0, fmt.Errorf("price %q is out of range", s)
	}
	return v, nil
}

func parseAvailability(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "in stock", "available":
		return true, nil
	case "false", "no", "n", "0", "out of stock", "unavailable":
		return false, nil
	default:
		return false, fmt.Errorf("availability %q is not recognized", s)
	}
}

// splitList splits "a; b | c" into its non-empty trimmed items
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// parseAlternatives reads "id:name:price|id:name:price". The name may
// contain colons.
func parseAlternatives(s string) ([]entities.Alternative, error) {
	if s == "" {
		return nil, nil
	}

	var out []entities.Alternative
	for _, entry := range strings.Split(s, "|") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		first := strings.IndexByte(entry, ':')
		last := strings.LastIndexByte(entry, ':')
		if first < 0 || first == last {
			return nil, fmt.Errorf("alternative %q must be id:name:price", entry)
		}

		price, err := parsePrice(strings.TrimSpace(entry[last+1:]))
		if err != nil {
			return nil, fmt.Errorf("alternative %q: %v", entry, err)
		}

		out = append(out, entities.Alternative{
			ID:    strings.TrimSpace(entry[:first]),
			Name:  strings.TrimSpace(entry[first+1 : last]),
			Price: price,
		})
	}
	return out, nil
}
