// Package cli implements meditempo, the command line client of the
// medication catalog. It opens the configured storage directly, so it works
// with or without a running server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	flag "github.com/spf13/pflag"

	"github.com/MLotfy88/Medi-Tempo/config"
	"github.com/MLotfy88/Medi-Tempo/data"
	"github.com/MLotfy88/Medi-Tempo/dosage"
	"github.com/MLotfy88/Medi-Tempo/importer"
	"github.com/MLotfy88/Medi-Tempo/interfaces"
	"github.com/MLotfy88/Medi-Tempo/logging"
	"github.com/MLotfy88/Medi-Tempo/storage"
	"github.com/MLotfy88/Medi-Tempo/validation"
)

// globalOptions are the flags accepted before the command name. Empty values
// keep what the environment configures.
type globalOptions struct {
	storageDriver string
	dataPath      string
	databaseURL   string
	rulesFile     string
	logLevel      string
	jsonOutput    bool
}

// app holds the catalog and its collaborators, opened on first use
type app struct {
	opts globalOptions

	kv         storage.KeyValue
	store      *data.Store
	validator  interfaces.DataValidator
	calculator *dosage.Calculator
	parser     *importer.Parser
}

// Run is the entry point of the CLI. args excludes the program name.
func Run(ctx context.Context, out, errOut io.Writer, args []string) int {
	var opts globalOptions

	global := flag.NewFlagSet("meditempo", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	global.SetInterspersed(false)
	global.StringVar(&opts.storageDriver, "storage", "", "storage driver: memory, file, sqlite or postgres (default $STORAGE_DRIVER)")
	global.StringVar(&opts.dataPath, "data-path", "", "file or sqlite database path (default $DATA_PATH)")
	global.StringVar(&opts.databaseURL, "database-url", "", "postgres connection string (default $DATABASE_URL)")
	global.StringVar(&opts.rulesFile, "rules", "", "YAML dosage rules file (default $DOSAGE_RULES_FILE)")
	global.StringVar(&opts.logLevel, "log-level", "error", "log level: debug, info, warn or error")
	global.BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of tables")

	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(out, global)
			return 0
		}
		fmt.Fprintln(errOut, "error:", err)
		printUsage(errOut, global)
		return 1
	}

	rest := global.Args()
	if len(rest) == 0 || rest[0] == "help" {
		printUsage(out, global)
		return 0
	}

	logging.InitLoggerWithOptions(logging.Options{Level: opts.logLevel, Console: errOut})

	a := &app{opts: opts}
	defer a.close()

	cmd, ok := commands(a)[rest[0]]
	if !ok {
		fmt.Fprintln(errOut, "error: unknown command:", rest[0])
		printUsage(errOut, global)
		return 1
	}

	return cmd.Run(ctx, NewIO(out, errOut), rest[1:])
}

func commands(a *app) map[string]*Command {
	list := []*Command{
		SearchCmd(a),
		FilterCmd(a),
		ShowCmd(a),
		DoseCmd(a),
		ImportCmd(a),
		InfoCmd(a),
	}

	byName := make(map[string]*Command, len(list))
	for _, c := range list {
		byName[c.Name()] = c
	}
	return byName
}

func printUsage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintln(w, "meditempo - medication catalog client")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: meditempo [global flags] <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")

	cmds := commands(&app{})
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(w, cmds[name].HelpLine())
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	fmt.Fprint(w, global.FlagUsages())
}

// open loads the configuration, applies the global flag overrides and loads
// the catalog. It is a no-op after the first call.
func (a *app) open(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	opts := cfg.StorageOptions()
	if a.opts.storageDriver != "" {
		opts.Driver = a.opts.storageDriver
	}
	if a.opts.dataPath != "" {
		opts.Path = a.opts.dataPath
	}
	if a.opts.databaseURL != "" {
		opts.DatabaseURL = a.opts.databaseURL
	}

	rulesFile := cfg.DosageRulesFile
	if a.opts.rulesFile != "" {
		rulesFile = a.opts.rulesFile
	}
	rules := dosage.DefaultRules()
	if rulesFile != "" {
		if rules, err = dosage.LoadRules(rulesFile); err != nil {
			return err
		}
	}

	kv, err := storage.Open(ctx, opts)
	if err != nil {
		return err
	}

	a.kv = kv
	a.store = data.NewStore(kv)
	a.store.Load(ctx)
	a.validator = validation.NewDataValidator()
	a.calculator = dosage.NewCalculator(rules)
	a.parser = importer.NewParser(cfg.MaxImportBody)
	return nil
}

func (a *app) close() {
	if a.kv == nil {
		return
	}
	if err := a.kv.Close(); err != nil {
		logging.Error("Failed to close storage", "error", err)
	}
}

// warnFallback flags output served from the built-in records
func (a *app) warnFallback(o *IO) {
	if a.store.FallbackActive() {
		o.Warn("storage could not be read, showing the built-in medications")
	}
}
