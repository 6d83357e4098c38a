package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/MLotfy88/Medi-Tempo/data"
	"github.com/MLotfy88/Medi-Tempo/entities"
	"github.com/MLotfy88/Medi-Tempo/importer"
	"github.com/MLotfy88/Medi-Tempo/interfaces"
	"github.com/MLotfy88/Medi-Tempo/query"
)

var errMissingArg = errors.New("missing argument")

// filterFlags registers the three filter dimensions on fs
func filterFlags(fs *flag.FlagSet, c *entities.FilterCriteria) {
	fs.StringSliceVar(&c.Price, "price", nil, "price buckets: Low, Medium, High")
	fs.StringSliceVar(&c.Category, "category", nil, "category substrings, case-insensitive")
	fs.StringSliceVar(&c.Availability, "availability", nil, `availability: "In Stock", "Prescription Only", "Over the Counter"`)
}

func (a *app) validateFilter(c entities.FilterCriteria) error {
	for _, values := range [][]string{c.Price, c.Category, c.Availability} {
		for _, v := range values {
			if err := a.validator.ValidateInput(v); err != nil {
				return fmt.Errorf("invalid filter %q: %w", v, err)
			}
		}
	}
	return nil
}

// SearchCmd searches by brand name or active ingredient
func SearchCmd(a *app) *Command {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	mode := fs.StringP("mode", "m", string(query.ModeBrand), "search field: brand or ingredient")

	var criteria entities.FilterCriteria
	filterFlags(fs, &criteria)

	return &Command{
		Flags: fs,
		Usage: "search <query>",
		Short: "Search medications by name or ingredient",
		Long: "Search medications whose brand name (or active ingredient with --mode ingredient)\n" +
			"contains the query, ignoring case. An empty query matches every record.\n" +
			"Filter flags narrow the result.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: search takes exactly one query", errMissingArg)
			}

			searchMode, err := query.ParseSearchMode(*mode)
			if err != nil {
				return err
			}

			if err := a.open(ctx); err != nil {
				return err
			}

			q := strings.TrimSpace(args[0])
			if q != "" {
				if err := a.validator.ValidateInput(q); err != nil {
					return fmt.Errorf("invalid query: %w", err)
				}
			}
			if err := a.validateFilter(criteria); err != nil {
				return err
			}

			results := query.Filter(a.store.Search(q, searchMode), criteria)
			a.warnFallback(o)
			return a.printMedications(o, results)
		},
	}
}

// FilterCmd lists the catalog restricted by the filter flags
func FilterCmd(a *app) *Command {
	fs := flag.NewFlagSet("filter", flag.ContinueOnError)

	var criteria entities.FilterCriteria
	filterFlags(fs, &criteria)

	return &Command{
		Flags: fs,
		Usage: "filter [--price ...] [--category ...] [--availability ...]",
		Short: "List medications matching filters",
		Long: "List medications matching every given filter dimension. Within a dimension\n" +
			"one matching value is enough. Without flags the whole catalog is listed.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("filter takes no arguments, got %q", args)
			}

			if err := a.open(ctx); err != nil {
				return err
			}
			if err := a.validateFilter(criteria); err != nil {
				return err
			}

			a.warnFallback(o)
			return a.printMedications(o, a.store.Filter(criteria))
		},
	}
}

// ShowCmd prints one medication in full
func ShowCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("show", flag.ContinueOnError),
		Usage: "show <id>",
		Short: "Show a medication with its alternatives",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: medication id is required", errMissingArg)
			}
			id := args[0]

			if err := a.open(ctx); err != nil {
				return err
			}
			if err := a.validator.ValidateID(id); err != nil {
				return fmt.Errorf("invalid id: %w", err)
			}

			med, ok := a.store.GetByID(id)
			if !ok {
				return fmt.Errorf("id %s: %w", id, data.ErrNotFound)
			}

			a.warnFallback(o)
			if a.opts.jsonOutput {
				return a.printJSON(o, med)
			}
			printMedication(o, med)
			return nil
		},
	}
}

// DoseCmd computes a weight-based dose
func DoseCmd(a *app) *Command {
	fs := flag.NewFlagSet("dose", flag.ContinueOnError)
	id := fs.String("id", "", "medication id")
	weight := fs.Float64P("weight", "w", 0, "patient weight (required)")
	unit := fs.StringP("unit", "u", string(entities.Kilograms), "weight unit: kg or lb")

	return &Command{
		Flags: fs,
		Usage: "dose [<name>] --weight <n>",
		Short: "Calculate a dose from patient weight",
		Long: "Calculate the recommended single dose for a medication given by --id or by\n" +
			"name. Names unknown to the catalog are dosed by their words alone.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			name := strings.TrimSpace(strings.Join(args, " "))
			if *id == "" && name == "" {
				return fmt.Errorf("%w: a medication name or --id is required", errMissingArg)
			}
			if !fs.Changed("weight") {
				return fmt.Errorf("%w: --weight is required", errMissingArg)
			}

			if err := a.open(ctx); err != nil {
				return err
			}

			weightUnit := entities.WeightUnit(strings.ToLower(*unit))
			if err := a.validator.ValidateWeight(*weight, weightUnit); err != nil {
				return err
			}

			req := entities.DosageRequest{Weight: *weight, Unit: weightUnit}
			if *id != "" {
				if err := a.validator.ValidateID(*id); err != nil {
					return fmt.Errorf("invalid id: %w", err)
				}
			}

			med, err := a.store.Resolve(*id, name)
			switch {
			case err == nil:
				req.MedicationName = med.Name
				req.ActiveIngredient = med.ActiveIngredient
			case errors.Is(err, data.ErrNotFound) && *id == "":
				if err := a.validator.ValidateInput(name); err != nil {
					return fmt.Errorf("invalid name: %w", err)
				}
				req.MedicationName = name
			default:
				return err
			}

			result := a.calculator.Calculate(req)
			if a.opts.jsonOutput {
				return a.printJSON(o, struct {
					MedicationName string `json:"medicationName"`
					entities.DosageResult
				}{req.MedicationName, result})
			}

			o.Printf("%s: %d%s %s\n", req.MedicationName, result.DosageAmount, result.Unit, result.Frequency)
			if !result.IsSafe {
				o.Warn("%s", result.Warning)
			}
			return nil
		},
	}
}

// ImportCmd appends the records of a CSV file or URL to the catalog
func ImportCmd(a *app) *Command {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	url := fs.String("url", "", "download the CSV from this http(s) URL instead of a file")

	return &Command{
		Flags: fs,
		Usage: "import <file.csv> | --url <url>",
		Short: "Import medications from CSV",
		Long: "Append the valid rows of a CSV file to the catalog. Records whose id is\n" +
			"already known are skipped. Rejected rows are listed on stderr.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if (*url == "") == (len(args) == 0) || len(args) > 1 {
				return fmt.Errorf("%w: give either one file or --url", errMissingArg)
			}

			if err := a.open(ctx); err != nil {
				return err
			}
			if !a.store.BeginUpdate() {
				return errors.New("another import is in progress")
			}
			defer a.store.EndUpdate()

			var (
				res *entities.ParseResult
				err error
			)
			if *url != "" {
				res, err = a.parser.Download(ctx, *url)
			} else {
				res, err = a.parser.ParseFile(ctx, args[0])
			}
			if res != nil {
				for _, rowErr := range res.RowErrors {
					o.ErrPrintln("skipped", rowErr.Error())
				}
			}
			if err != nil {
				if errors.Is(err, importer.ErrNoValidRows) {
					return fmt.Errorf("nothing imported: %w", err)
				}
				return err
			}

			added, err := a.store.AddMedications(ctx, res.Medications)
			if err != nil {
				return err
			}

			if a.opts.jsonOutput {
				return a.printJSON(o, struct {
					entities.AddResult
					Rows      int                 `json:"rows"`
					RowErrors []entities.RowError `json:"rowErrors"`
				}{added, res.Rows, res.RowErrors})
			}
			o.Printf("added %d, skipped %d, total %d\n", added.Added, added.Skipped, added.Total)
			return nil
		},
	}
}

// InfoCmd prints catalog statistics
func InfoCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("info", flag.ContinueOnError),
		Usage: "info",
		Short: "Show catalog size and freshness",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			if err := a.open(ctx); err != nil {
				return err
			}

			meds := a.store.Medications()
			report := a.validator.ReportDataQuality(meds)
			a.warnFallback(o)

			if a.opts.jsonOutput {
				return a.printJSON(o, struct {
					Records        int                          `json:"records"`
					LastUpdated    string                       `json:"lastUpdated"`
					Size           string                       `json:"size"`
					FallbackActive bool                         `json:"fallbackActive"`
					Quality        *interfaces.DataQualityReport `json:"quality"`
				}{len(meds), formatUpdated(a.store), a.store.DatabaseSize(), a.store.FallbackActive(), report})
			}

			o.Printf("records:       %d\n", len(meds))
			o.Printf("last updated:  %s\n", formatUpdated(a.store))
			o.Printf("size:          %s\n", a.store.DatabaseSize())
			o.Printf("unavailable:   %d\n", report.Unavailable)
			o.Printf("zero price:    %d\n", report.ZeroPrice)
			if len(report.DuplicateIDs) > 0 {
				o.Warn("duplicate ids: %s", strings.Join(report.DuplicateIDs, ", "))
			}
			return nil
		},
	}
}

func formatUpdated(s *data.Store) string {
	if t := s.LastUpdated(); !t.IsZero() {
		return data.FormatTimestamp(t)
	}
	return "never"
}

func (a *app) printJSON(o *IO, v any) error {
	enc := json.NewEncoder(o.Out())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printMedications(o *IO, meds []entities.Medication) error {
	if a.opts.jsonOutput {
		return a.printJSON(o, meds)
	}

	if len(meds) == 0 {
		o.Println("no medications found")
		return nil
	}

	tw := tabwriter.NewWriter(o.Out(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tINGREDIENT\tPRICE\tCATEGORY\tAVAILABLE")
	for _, m := range meds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%t\n", m.ID, m.Name, m.ActiveIngredient, m.Price, m.Category, m.IsAvailable)
	}
	return tw.Flush()
}

func printMedication(o *IO, m entities.Medication) {
	o.Printf("%s  %s\n", m.ID, m.Name)
	o.Printf("ingredient:  %s\n", m.ActiveIngredient)
	o.Printf("price:       %.2f (%s)\n", m.Price, query.PriceBucket(m.Price))
	o.Printf("category:    %s\n", m.Category)
	o.Printf("available:   %t\n", m.IsAvailable)

	if m.Description != "" {
		o.Printf("\n%s\n", m.Description)
	}
	if m.DosageInfo != "" {
		o.Printf("\ndosage:      %s\n", m.DosageInfo)
	}
	if m.Storage != "" {
		o.Printf("storage:     %s\n", m.Storage)
	}
	if len(m.SideEffects) > 0 {
		o.Printf("side effects: %s\n", strings.Join(m.SideEffects, ", "))
	}
	for _, w := range m.Warnings {
		o.Printf("warning:     %s\n", w)
	}
	if len(m.Alternatives) > 0 {
		o.Println("\nalternatives:")
		for _, alt := range m.Alternatives {
			o.Printf("  %-4s %-24s %.2f\n", alt.ID, alt.Name, alt.Price)
		}
	}
}
