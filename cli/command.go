package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one subcommand of the meditempo CLI
type Command struct {
	// Flags is the subcommand's own flag set, parsed after the global flags
	Flags *flag.FlagSet

	// Usage is the one-line synopsis. Its first word is the command name.
	Usage string

	Short string
	Long  string

	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the command name taken from Usage
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// HelpLine is the entry shown in the top-level command list
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-38s %s", c.Usage, c.Short)
}

// PrintHelp writes the full help of the command to stdout
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: meditempo [global flags]", c.Usage)
	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}
	o.Println(desc)

	if c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")
		o.Printf("%s", c.Flags.FlagUsages())
	}
}

// Run parses args and executes the command. It returns the exit code.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(io.Discard)

	if err := c.Flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)
			return 0
		}
		o.ErrPrintln("error:", err)
		o.ErrPrintln("run 'meditempo", c.Name(), "--help' for usage")
		return 1
	}

	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		o.ErrPrintln("error:", err)
		return 1
	}

	return o.Finish()
}

// IO collects command output. Warnings go to stderr after the regular output
// and turn the exit code to 1.
type IO struct {
	out      io.Writer
	errOut   io.Writer
	warnings []string
}

// NewIO creates an IO writing to out and errOut
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Out returns the stdout writer, for encoders and tab writers
func (o *IO) Out() io.Writer { return o.out }

func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Warn records a problem that does not abort the command
func (o *IO) Warn(format string, a ...any) {
	o.warnings = append(o.warnings, fmt.Sprintf(format, a...))
}

// Finish prints the collected warnings and returns the exit code
func (o *IO) Finish() int {
	for _, w := range o.warnings {
		o.ErrPrintln("warning:", w)
	}
	if len(o.warnings) > 0 {
		return 1
	}
	return 0
}
