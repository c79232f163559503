package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"rentsplit/internal/core"
	"rentsplit/internal/report"
	"rentsplit/internal/services"
)

// ErrUsage marks malformed command lines. Callers exit with status 2.
var ErrUsage = errors.New("usage error")

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

type command struct {
	summary string
	run     func(ctx context.Context, r *Runner, args []string) error
}

var commands = map[string]command{
	"show":            {"print the current rent setup", runShow},
	"set":             {"set -rent, -deposit and -maintenance", runSet},
	"policy":          {"select the split policy: equal, room or custom", runPolicy},
	"add-occupant":    {"add or replace an occupant (-name, -room, -percent)", runAddOccupant},
	"remove-occupant": {"remove an occupant by name", runRemoveOccupant},
	"add-charge":      {"add or replace a utility (-name, -amount, -split, -note)", runAddCharge},
	"quick-add":       {"add a preset utility (Electricity, Water, Internet, Gas, Cable TV)", runQuickAdd},
	"remove-charge":   {"remove a utility by name", runRemoveCharge},
	"calculate":       {"print the rent calculation (-month, -year, -save)", runCalculate},
	"report":          {"print the payment report (-month, -year, -save)", runReport},
	"clear":           {"reset everything to the defaults", runClear},
	"publish":         {"publish the statement to the message broker (-month, -year)", runPublish},
}

// Runner executes rentsplit commands against a HouseholdService.
type Runner struct {
	svc       *services.HouseholdService
	formatter *report.Formatter
	out       io.Writer
	now       func() time.Time
}

func NewRunner(svc *services.HouseholdService, formatter *report.Formatter, out io.Writer, now func() time.Time) *Runner {
	if formatter == nil {
		formatter = report.NewFormatter("")
	}
	if now == nil {
		now = time.Now
	}
	return &Runner{svc: svc, formatter: formatter, out: out, now: now}
}

// Run dispatches args[0] to its command. Commands that change the setup save
// it before returning.
func (r *Runner) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		r.Usage()
		return usageErr("missing command")
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		r.Usage()
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		r.Usage()
		return usageErr("unknown command %q", name)
	}
	return cmd.run(ctx, r, args[1:])
}

// Usage prints the command list.
func (r *Runner) Usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(r.out, "Usage: rentsplit <command> [flags]")
	fmt.Fprintln(r.out)
	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, commands[name].summary)
	}
	tw.Flush()
}

func (r *Runner) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(r.out)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageErr("%s: %v", fs.Name(), err)
	}
	return nil
}

// periodFlags registers -month and -year defaulting to the current month.
func (r *Runner) periodFlags(fs *flag.FlagSet) func() (core.Period, error) {
	cur := core.PeriodOf(r.now())
	month := fs.String("month", strconv.Itoa(cur.Month), "month number or name")
	year := fs.Int("year", cur.Year, "year")
	return func() (core.Period, error) {
		m, err := core.ParseMonth(*month)
		if err != nil {
			return core.Period{}, err
		}
		p := core.Period{Month: m, Year: *year}
		return p, p.Validate()
	}
}

func oneArg(fs *flag.FlagSet) (string, error) {
	rest := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if rest == "" {
		return "", usageErr("%s: missing argument", fs.Name())
	}
	return rest, nil
}

func runShow(_ context.Context, r *Runner, args []string) error {
	fs := r.flagSet("show")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	snap := r.svc.Snapshot()
	f := r.formatter

	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Split type:\t%s\n", snap.Policy.Label())
	fmt.Fprintf(tw, "Monthly rent:\t%s\n", f.Money(snap.Rent))
	fmt.Fprintf(tw, "Maintenance:\t%s\n", f.Money(snap.Maintenance))
	fmt.Fprintf(tw, "Security deposit:\t%s\n", f.Money(snap.SecurityDeposit))
	fmt.Fprintf(tw, "Monthly total:\t%s\n", f.Money(snap.MonthlyTotal()))
	tw.Flush()

	fmt.Fprintf(r.out, "\nUtilities (%d):\n", snap.Charges.Len())
	tw = tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	for _, c := range snap.Charges.All() {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", c.Name, f.Money(c.Amount), c.SplitMethod, c.Note)
	}
	tw.Flush()

	fmt.Fprintf(r.out, "\nTenants (%d):\n", snap.Occupants.Len())
	tw = tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	for i, o := range snap.Occupants.All() {
		switch snap.Policy {
		case core.PolicyByRoomSize:
			fmt.Fprintf(tw, "  %d.\t%s\t%g sq ft\n", i+1, o.ID, o.RoomSize)
		case core.PolicyByPercentage:
			fmt.Fprintf(tw, "  %d.\t%s\t%g%%\n", i+1, o.ID, o.Percentage)
		default:
			fmt.Fprintf(tw, "  %d.\t%s\n", i+1, o.ID)
		}
	}
	return tw.Flush()
}

func runSet(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("set")
	rent := fs.String("rent", "", "monthly rent")
	deposit := fs.String("deposit", "", "security deposit")
	maintenance := fs.String("maintenance", "", "monthly maintenance")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	snap := r.svc.Snapshot()
	values := []struct {
		field string
		raw   string
		dst   *core.Money
	}{
		{"rent", *rent, &snap.Rent},
		{"security deposit", *deposit, &snap.SecurityDeposit},
		{"maintenance", *maintenance, &snap.Maintenance},
	}
	changed := false
	for _, v := range values {
		if v.raw == "" {
			continue
		}
		m, err := core.ParseMoney(v.raw)
		if err != nil {
			return &core.ValidationError{Field: v.field, Err: err}
		}
		*v.dst = m
		changed = true
	}
	if !changed {
		return usageErr("set: at least one of -rent, -deposit, -maintenance is required")
	}

	r.svc.SetBasics(snap.Rent, snap.SecurityDeposit, snap.Maintenance)
	if err := r.svc.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Rent %s, maintenance %s, security deposit %s\n",
		r.formatter.Money(snap.Rent), r.formatter.Money(snap.Maintenance), r.formatter.Money(snap.SecurityDeposit))
	return nil
}

func runPolicy(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("policy")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	raw, err := oneArg(fs)
	if err != nil {
		return err
	}
	p, err := core.ParsePolicy(raw)
	if err != nil {
		return err
	}
	if err := r.svc.SetPolicy(p); err != nil {
		return err
	}
	if err := r.svc.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Split type: %s\n", p.Label())
	return nil
}

func runAddOccupant(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("add-occupant")
	name := fs.String("name", "", "tenant name")
	room := fs.Float64("room", 0, "room size in sq ft (room policy)")
	percent := fs.Float64("percent", 0, "share percentage (custom policy)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *name == "" {
		*name = strings.Join(fs.Args(), " ")
	}

	replaced, err := r.svc.AddOccupant(core.Occupant{ID: *name, RoomSize: *room, Percentage: *percent})
	if err != nil {
		return err
	}
	if err := r.svc.Save(ctx); err != nil {
		return err
	}
	verb := "Added"
	if replaced {
		verb = "Updated"
	}
	fmt.Fprintf(r.out, "%s tenant %s\n", verb, strings.TrimSpace(*name))
	return nil
}

func runRemoveOccupant(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("remove-occupant")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	name, err := oneArg(fs)
	if err != nil {
		return err
	}
	if r.svc.RemoveOccupant(name) == 0 {
		fmt.Fprintf(r.out, "No tenant named %s\n", name)
		return nil
	}
	if err := r.svc.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Removed tenant %s\n", name)
	return nil
}

func runAddCharge(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("add-charge")
	name := fs.String("name", "", "utility name")
	amount := fs.String("amount", "", "monthly amount")
	split := fs.String("split", "Equal", "split method: Equal, By Usage or Custom")
	note := fs.String("note", "", "free text note")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	m, err := core.ParseMoney(*amount)
	if err != nil {
		return &core.ValidationError{Field: "charge amount", Err: err}
	}
	method, err := core.ParseSplitMethod(*split)
	if err != nil {
		return err
	}
	c := core.Charge{Name: strings.TrimSpace(*name), Amount: m, SplitMethod: method, Note: *note}
	if err := r.svc.AddCharge(c); err != nil {
		return err
	}
	if err := r.svc.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Added %s: %s\n", c.Name, r.formatter.Money(c.Amount))
	return nil
}

func runQuickAdd(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("quick-add")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	preset, err := oneArg(fs)
	if err != nil {
		return err
	}
	c, err := r.svc.QuickAddCharge(preset)
	if err != nil {
		return err
	}
	if err := r.svc.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Added %s: %s\n", c.Name, r.formatter.Money(c.Amount))
	return nil
}

func runRemoveCharge(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("remove-charge")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	name, err := oneArg(fs)
	if err != nil {
		return err
	}
	if !r.svc.RemoveCharge(name) {
		fmt.Fprintf(r.out, "No utility named %s\n", name)
		return nil
	}
	if err := r.svc.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Removed utility %s\n", name)
	return nil
}

func runCalculate(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("calculate")
	period := r.periodFlags(fs)
	save := fs.Bool("save", false, "also write the calculation to the output directory")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	p, err := period()
	if err != nil {
		return err
	}

	calc, err := r.svc.Calculate(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprint(r.out, calc.Text)
	if *save {
		path, err := r.svc.SaveCalculation(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "\nSaved to %s\n", path)
	}
	return nil
}

func runReport(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("report")
	period := r.periodFlags(fs)
	save := fs.Bool("save", false, "write the report to the output directory instead of printing it")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	p, err := period()
	if err != nil {
		return err
	}

	if *save {
		path, err := r.svc.SaveReport(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Report saved to %s\n", path)
		return nil
	}
	rep, err := r.svc.Report(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprint(r.out, rep.Text)
	return nil
}

func runClear(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("clear")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := r.svc.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "All data cleared")
	return nil
}

func runPublish(ctx context.Context, r *Runner, args []string) error {
	fs := r.flagSet("publish")
	period := r.periodFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	p, err := period()
	if err != nil {
		return err
	}
	msg, err := r.svc.PublishStatement(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Published statement for %s (%d tenants)\n", p, len(msg.Shares))
	return nil
}
