// Command expensectl is a terminal front-end for the expense tracker. It talks
// to the API when it is reachable and keeps working against a local copy when
// it is not.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"expensetracker/internal/client"
	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/log"

	"golang.org/x/term"
)

const usage = `Usage: expensectl [-offline] [-api URL] [-db PATH] [-v] <command> [flags]

Commands:
  register       create an account
  login          sign in
  logout         sign out
  whoami         show the signed-in user and connectivity
  add            record an expense
  list           list expenses
  show ID        show one expense
  edit ID        change an expense
  rm ID          delete an expense
  budget [set]   show or set the monthly budget
  dashboard      month overview, budget and recent expenses
  report         totals per category for a month
  trend          monthly totals over several months
  recurring      list|add|edit|rm|pause|resume recurring expenses
  notifications  list notifications, or "notifications read ID|all"
  profile        show or update the profile
  passwd         change the password
  prefs          show or change display preferences
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	config.LoadEnvFile()
	cfg := config.LoadClient()

	fs := flag.NewFlagSet("expensectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	fs.BoolVar(&cfg.Offline, "offline", cfg.Offline, "never contact the API")
	fs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "API base URL")
	fs.StringVar(&cfg.LocalDBPath, "db", cfg.LocalDBPath, "local database path")
	verbose := fs.Bool("v", false, "log client activity to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, Output: stderr, Component: log.ComponentClient})

	c, err := client.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open client: %w", err)
	}
	defer c.Close()

	a := &app{client: c, stdin: bufio.NewReader(stdin), rawIn: stdin, stdout: stdout, stderr: stderr}
	return a.dispatch(ctx, fs.Args())
}

// app runs one command against a client.
type app struct {
	client *client.Client
	stdin  *bufio.Reader
	rawIn  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return a.register(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		if err := a.client.Session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, "Signed out.")
		return nil
	case "whoami":
		return a.whoami(ctx)
	case "add":
		return a.add(ctx, rest)
	case "list", "ls":
		return a.list(ctx, rest)
	case "show":
		return a.show(ctx, rest)
	case "edit":
		return a.edit(ctx, rest)
	case "rm", "delete":
		return a.remove(ctx, rest)
	case "budget":
		return a.budget(ctx, rest)
	case "dashboard":
		return a.dashboard(ctx, rest)
	case "report":
		return a.report(ctx, rest)
	case "trend":
		return a.trend(ctx, rest)
	case "recurring":
		return a.recurring(ctx, rest)
	case "notifications":
		return a.notifications(ctx, rest)
	case "profile":
		return a.profile(ctx, rest)
	case "passwd":
		return a.passwd(ctx, rest)
	case "prefs":
		return a.prefs(ctx, rest)
	case "help":
		fmt.Fprint(a.stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q (see expensectl help)", cmd)
	}
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// --- account ---

func (a *app) register(ctx context.Context, args []string) error {
	fs := a.flags("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (prompted when omitted)")
	currency := fs.String("currency", core.DefaultCurrency, "ISO currency code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *email == "" {
		fs.PrintDefaults()
		return errors.New("missing required flags: name, email")
	}
	pw, err := a.password(*password, "Password: ")
	if err != nil {
		return err
	}

	acc, err := a.client.Session.Register(ctx, *name, *email, pw, *currency)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Registered %s <%s>%s\n", acc.User.Name, acc.User.Email, localNote(acc))
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		fs.PrintDefaults()
		return errors.New("missing required flag: email")
	}
	pw, err := a.password(*password, "Password: ")
	if err != nil {
		return err
	}

	acc, err := a.client.Session.Login(ctx, *email, pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Signed in as %s <%s>%s\n", acc.User.Name, acc.User.Email, localNote(acc))
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	acc, err := a.client.Session.Current(ctx)
	if err != nil {
		return err
	}
	state := "online"
	switch {
	case a.client.Availability.Forced():
		state = "offline (forced)"
	case !a.client.Availability.Online(ctx):
		state = "offline"
	}
	fmt.Fprintf(a.stdout, "%s <%s>%s\nAPI: %s\n", acc.User.Name, acc.User.Email, localNote(acc), state)
	return nil
}

func (a *app) passwd(ctx context.Context, args []string) error {
	fs := a.flags("passwd")
	if err := fs.Parse(args); err != nil {
		return err
	}
	current, err := a.password("", "Current password: ")
	if err != nil {
		return err
	}
	next, err := a.password("", "New password: ")
	if err != nil {
		return err
	}
	if err := a.client.Tracker.ChangePassword(ctx, current, next); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Password changed.")
	return nil
}

func (a *app) profile(ctx context.Context, args []string) error {
	fs := a.flags("profile")
	var in client.ProfileInput
	fs.Func("name", "new display name", func(s string) error { in.Name = &s; return nil })
	fs.Func("email", "new email address", func(s string) error { in.Email = &s; return nil })
	fs.Func("currency", "new currency code", func(s string) error { in.Currency = &s; return nil })
	fs.Func("avatar", "avatar URL", func(s string) error { in.Avatar = &s; return nil })
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		u   core.User
		err error
	)
	if in == (client.ProfileInput{}) {
		u, err = a.client.Tracker.Profile(ctx)
	} else {
		u, err = a.client.Tracker.UpdateProfile(ctx, in)
	}
	if err != nil {
		return err
	}
	tw := a.table()
	fmt.Fprintf(tw, "Name\t%s\n", u.Name)
	fmt.Fprintf(tw, "Email\t%s\n", u.Email)
	fmt.Fprintf(tw, "Currency\t%s\n", u.Currency)
	if u.Avatar != "" {
		fmt.Fprintf(tw, "Avatar\t%s\n", u.Avatar)
	}
	return tw.Flush()
}

// --- expenses ---

func (a *app) add(ctx context.Context, args []string) error {
	fs := a.flags("add")
	in, finish := expenseFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := finish(true); err != nil {
		return err
	}
	e, err := a.client.Tracker.AddExpense(ctx, *in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Added %s: %s %s on %s\n", e.ID, e.Title, a.money(ctx, e.Amount), e.Date)
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	id, args, err := takeID("edit", args)
	if err != nil {
		return err
	}
	current, err := a.client.Tracker.Expense(ctx, id)
	if err != nil {
		return err
	}

	fs := a.flags("edit")
	in, finish := expenseFlags(fs)
	*in = client.ExpenseInput{
		Title: current.Title, Amount: current.Amount, Category: current.Category,
		Date: current.Date, Description: current.Description,
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := finish(false); err != nil {
		return err
	}
	e, err := a.client.Tracker.UpdateExpense(ctx, id, *in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Updated %s: %s %s on %s\n", e.ID, e.Title, a.money(ctx, e.Amount), e.Date)
	return nil
}

// expenseFlags binds the expense fields to fs. finish reports parse errors
// collected during Parse and, when required is set, missing fields.
func expenseFlags(fs *flag.FlagSet) (*client.ExpenseInput, func(required bool) error) {
	in := &client.ExpenseInput{}
	var amountSet bool
	fs.StringVar(&in.Title, "title", "", "what the money was spent on")
	fs.StringVar(&in.Category, "category", "", "category")
	fs.StringVar(&in.Description, "desc", "", "optional description")
	fs.Func("amount", "amount, e.g. 12.50", func(s string) error {
		m, err := parseAmount(s)
		if err != nil {
			return err
		}
		in.Amount, amountSet = m, true
		return nil
	})
	fs.Func("date", "date YYYY-MM-DD (default today)", func(s string) error {
		d, err := core.ParseDate(s)
		if err != nil {
			return err
		}
		in.Date = d
		return nil
	})
	return in, func(required bool) error {
		if !required {
			return nil
		}
		var missing []string
		if in.Title == "" {
			missing = append(missing, "title")
		}
		if !amountSet {
			missing = append(missing, "amount")
		}
		if in.Category == "" {
			missing = append(missing, "category")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
		}
		return nil
	}
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := a.flags("list")
	var q client.ExpenseQuery
	fs.Func("from", "first day YYYY-MM-DD", dateFlag(&q.From))
	fs.Func("to", "last day YYYY-MM-DD", dateFlag(&q.To))
	fs.Func("month", "month YYYY-MM (sets from and to)", func(s string) error {
		y, m, err := parseMonth(s)
		if err != nil {
			return err
		}
		q.From, q.To = core.MonthRange(y, m)
		return nil
	})
	fs.StringVar(&q.Category, "category", "", "only this category")
	fs.IntVar(&q.Limit, "limit", 0, "page size")
	fs.IntVar(&q.Offset, "offset", 0, "skip this many")
	if err := fs.Parse(args); err != nil {
		return err
	}

	page, err := a.client.Tracker.Expenses(ctx, q)
	if err != nil {
		return err
	}
	if len(page.Items) == 0 {
		fmt.Fprintln(a.stdout, "No expenses.")
		return nil
	}
	tw := a.table()
	fmt.Fprintln(tw, "ID\tDATE\tTITLE\tCATEGORY\tAMOUNT")
	for _, e := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Date, e.Title, e.Category, e.Amount.Decimal())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if shown := page.Offset + len(page.Items); shown < page.Total {
		fmt.Fprintf(a.stdout, "Showing %d-%d of %d.\n", page.Offset+1, shown, page.Total)
	}
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	id, _, err := takeID("show", args)
	if err != nil {
		return err
	}
	e, err := a.client.Tracker.Expense(ctx, id)
	if err != nil {
		return err
	}
	tw := a.table()
	fmt.Fprintf(tw, "ID\t%s\n", e.ID)
	fmt.Fprintf(tw, "Title\t%s\n", e.Title)
	fmt.Fprintf(tw, "Amount\t%s\n", a.money(ctx, e.Amount))
	fmt.Fprintf(tw, "Category\t%s\n", e.Category)
	fmt.Fprintf(tw, "Date\t%s\n", e.Date)
	if e.Description != "" {
		fmt.Fprintf(tw, "Description\t%s\n", e.Description)
	}
	return tw.Flush()
}

func (a *app) remove(ctx context.Context, args []string) error {
	id, _, err := takeID("rm", args)
	if err != nil {
		return err
	}
	if err := a.client.Tracker.DeleteExpense(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Deleted %s\n", id)
	return nil
}

// --- budget and reports ---

func (a *app) budget(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "set" {
		fs := a.flags("budget set")
		var in client.BudgetInput
		var amountSet bool
		fs.Func("amount", "monthly budget, 0 disables alerts", func(s string) error {
			m, err := parseBudget(s)
			in.MonthlyBudget, amountSet = m, err == nil
			return err
		})
		fs.IntVar(&in.AlertThreshold, "threshold", core.DefaultAlertPercent, "alert at this percent of the budget")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if !amountSet {
			return errors.New("missing required flag: amount")
		}
		b, err := a.client.Tracker.SetBudget(ctx, in)
		if err != nil {
			return err
		}
		return a.printBudget(ctx, b)
	}

	fs := a.flags("budget")
	month := monthFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	b, err := a.client.Tracker.Budget(ctx, month.year, month.month)
	if err != nil {
		return err
	}
	return a.printBudget(ctx, b)
}

func (a *app) printBudget(ctx context.Context, b core.BudgetSettings) error {
	tw := a.table()
	if b.Year > 0 {
		fmt.Fprintf(tw, "Month\t%04d-%02d\n", b.Year, b.Month)
	}
	fmt.Fprintf(tw, "Budget\t%s\n", a.money(ctx, b.MonthlyBudget))
	fmt.Fprintf(tw, "Alert at\t%d%%\n", b.AlertThreshold)
	fmt.Fprintf(tw, "Spent\t%s\n", a.money(ctx, b.Spent))
	fmt.Fprintf(tw, "Remaining\t%s\n", a.money(ctx, b.Remaining))
	fmt.Fprintf(tw, "Used\t%.1f%%\n", b.UsedPercent)
	fmt.Fprintf(tw, "Status\t%s\n", b.Status())
	return tw.Flush()
}

func (a *app) dashboard(ctx context.Context, args []string) error {
	fs := a.flags("dashboard")
	month := monthFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := a.client.Tracker.Dashboard(ctx, month.year, month.month)
	if err != nil {
		return err
	}

	o := s.Overview
	fmt.Fprintf(a.stdout, "%04d-%02d: %s across %d expenses\n", o.Year, o.Month, a.money(ctx, o.Total), o.Count)
	if s.BudgetStatus != core.BudgetUnset {
		fmt.Fprintf(a.stdout, "Budget: %s of %s used (%.1f%%, %s)\n",
			a.money(ctx, s.Budget.Spent), a.money(ctx, s.Budget.MonthlyBudget), s.Budget.UsedPercent, s.BudgetStatus)
	}
	if len(o.ByCategory) > 0 {
		fmt.Fprintln(a.stdout)
		a.printCategories(o.ByCategory)
	}
	if len(s.Recent) > 0 {
		fmt.Fprintln(a.stdout, "\nRecent:")
		tw := a.table()
		for _, e := range s.Recent {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", e.Date, e.Title, e.Amount.Decimal())
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if s.Unread > 0 {
		fmt.Fprintf(a.stdout, "\n%d unread notification(s).\n", s.Unread)
	}
	return nil
}

func (a *app) report(ctx context.Context, args []string) error {
	fs := a.flags("report")
	month := monthFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	o, err := a.client.Tracker.MonthlyReport(ctx, month.year, month.month)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%04d-%02d total %s (%d expenses)\n", o.Year, o.Month, a.money(ctx, o.Total), o.Count)
	a.printCategories(o.ByCategory)
	return nil
}

func (a *app) printCategories(cats []core.CategoryAmount) {
	tw := a.table()
	fmt.Fprintln(tw, "CATEGORY\tCOUNT\tAMOUNT")
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Name, c.Count, c.Amount.Decimal())
	}
	_ = tw.Flush()
}

func (a *app) trend(ctx context.Context, args []string) error {
	fs := a.flags("trend")
	month := monthFlag(fs)
	months := fs.Int("months", 0, "number of months (default 6)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	points, err := a.client.Tracker.Trend(ctx, month.year, month.month, *months)
	if err != nil {
		return err
	}
	tw := a.table()
	fmt.Fprintln(tw, "MONTH\tTOTAL")
	for _, p := range points {
		fmt.Fprintf(tw, "%04d-%02d\t%s\n", p.Year, p.Month, p.Total.Decimal())
	}
	return tw.Flush()
}

// --- recurring ---

func (a *app) recurring(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "list", "ls":
		items, err := a.client.Tracker.Recurring(ctx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(a.stdout, "No recurring expenses.")
			return nil
		}
		tw := a.table()
		fmt.Fprintln(tw, "ID\tTITLE\tAMOUNT\tFREQUENCY\tNEXT\tACTIVE")
		for _, r := range items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n", r.ID, r.Title, r.Amount.Decimal(), r.Frequency, r.NextOccurrence, r.Active)
		}
		return tw.Flush()

	case "add":
		fs := a.flags("recurring add")
		in, finish := recurringFlags(fs)
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := finish(true); err != nil {
			return err
		}
		r, err := a.client.Tracker.AddRecurring(ctx, *in)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Added %s: %s %s %s, next on %s\n", r.ID, r.Title, a.money(ctx, r.Amount), r.Frequency, r.NextOccurrence)
		return nil

	case "edit":
		id, args, err := takeID("recurring edit", args)
		if err != nil {
			return err
		}
		current, err := a.findRecurring(ctx, id)
		if err != nil {
			return err
		}
		fs := a.flags("recurring edit")
		in, finish := recurringFlags(fs)
		active := current.Active
		*in = client.RecurringInput{
			Title: current.Title, Amount: current.Amount, Category: current.Category,
			Frequency: current.Frequency, NextOccurrence: current.NextOccurrence, Active: &active,
		}
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := finish(false); err != nil {
			return err
		}
		r, err := a.client.Tracker.UpdateRecurring(ctx, id, *in)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Updated %s: %s %s %s, next on %s\n", r.ID, r.Title, a.money(ctx, r.Amount), r.Frequency, r.NextOccurrence)
		return nil

	case "rm", "delete":
		id, _, err := takeID("recurring rm", args)
		if err != nil {
			return err
		}
		if err := a.client.Tracker.DeleteRecurring(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Deleted %s\n", id)
		return nil

	case "pause", "resume":
		id, _, err := takeID("recurring "+sub, args)
		if err != nil {
			return err
		}
		r, err := a.client.Tracker.SetRecurringActive(ctx, id, sub == "resume")
		if err != nil {
			return err
		}
		state := "paused"
		if r.Active {
			state = "active"
		}
		fmt.Fprintf(a.stdout, "%s is %s\n", r.Title, state)
		return nil

	default:
		return fmt.Errorf("unknown recurring command %q", sub)
	}
}

func (a *app) findRecurring(ctx context.Context, id string) (core.RecurringExpense, error) {
	items, err := a.client.Tracker.Recurring(ctx)
	if err != nil {
		return core.RecurringExpense{}, err
	}
	for _, r := range items {
		if r.ID == id {
			return r, nil
		}
	}
	return core.RecurringExpense{}, client.ErrNotFound
}

func recurringFlags(fs *flag.FlagSet) (*client.RecurringInput, func(required bool) error) {
	in := &client.RecurringInput{}
	var amountSet bool
	fs.StringVar(&in.Title, "title", "", "what is paid")
	fs.StringVar(&in.Category, "category", "", "category")
	fs.Func("amount", "amount per occurrence", func(s string) error {
		m, err := parseAmount(s)
		in.Amount, amountSet = m, err == nil
		return err
	})
	fs.Func("frequency", "daily, weekly, monthly or yearly", func(s string) error {
		f := core.Frequency(strings.ToLower(strings.TrimSpace(s)))
		if !f.IsValid() {
			return core.ErrInvalidFrequency
		}
		in.Frequency = f
		return nil
	})
	fs.Func("next", "next occurrence YYYY-MM-DD", dateFlag(&in.NextOccurrence))
	return in, func(required bool) error {
		if !required {
			return nil
		}
		var missing []string
		if in.Title == "" {
			missing = append(missing, "title")
		}
		if !amountSet {
			missing = append(missing, "amount")
		}
		if in.Category == "" {
			missing = append(missing, "category")
		}
		if in.Frequency == "" {
			missing = append(missing, "frequency")
		}
		if in.NextOccurrence.IsZero() {
			missing = append(missing, "next")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
		}
		return nil
	}
}

// --- notifications and preferences ---

func (a *app) notifications(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "read" {
		id, _, err := takeID("notifications read", args[1:])
		if err != nil {
			return err
		}
		if id == "all" {
			n, err := a.client.Tracker.MarkAllNotificationsRead(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Marked %d notification(s) read.\n", n)
			return nil
		}
		if err := a.client.Tracker.MarkNotificationRead(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, "Marked read.")
		return nil
	}

	fs := a.flags("notifications")
	unread := fs.Bool("unread", false, "only unread notifications")
	if err := fs.Parse(args); err != nil {
		return err
	}
	list, err := a.client.Tracker.Notifications(ctx, *unread)
	if err != nil {
		return err
	}
	if len(list.Items) == 0 {
		fmt.Fprintln(a.stdout, "No notifications.")
		return nil
	}
	tw := a.table()
	for _, n := range list.Items {
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, n.ID, n.CreatedAt.Local().Format(time.DateTime), n.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%d unread.\n", list.UnreadCount)
	return nil
}

func (a *app) prefs(ctx context.Context, args []string) error {
	fs := a.flags("prefs")
	dark := fs.String("dark", "", "on, off or toggle")
	var currency *string
	fs.Func("currency", "display currency, empty to follow the profile", func(s string) error {
		currency = &s
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return err
	}
	p := a.client.Preferences
	switch *dark {
	case "":
	case "on":
		if _, err := p.SetDarkMode(ctx, true); err != nil {
			return err
		}
	case "off":
		if _, err := p.SetDarkMode(ctx, false); err != nil {
			return err
		}
	case "toggle":
		if _, err := p.ToggleDarkMode(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid -dark value %q", *dark)
	}
	if currency != nil {
		if _, err := p.SetCurrency(ctx, *currency); err != nil {
			return err
		}
	}

	cur := p.Get()
	mode := "light"
	if cur.DarkMode {
		mode = "dark"
	}
	display := cur.Currency
	if display == "" {
		display = "from profile"
	}
	fmt.Fprintf(a.stdout, "Theme: %s\nCurrency: %s\n", mode, display)
	return nil
}

// --- helpers ---

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
}

// money formats m in the display currency, falling back to the default when
// nobody is signed in.
func (a *app) money(ctx context.Context, m core.Money) string {
	var profile core.User
	if acc, err := a.client.Session.Current(ctx); err == nil {
		profile = acc.User
	}
	return m.Format(a.client.Preferences.DisplayCurrency(profile))
}

// password returns given, or prompts for it. Terminals get an echo-free
// prompt; anything else is read line by line.
func (a *app) password(given, prompt string) (string, error) {
	if given != "" {
		return given, nil
	}
	fmt.Fprint(a.stderr, prompt)
	defer fmt.Fprintln(a.stderr)

	if f, ok := a.rawIn.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := a.stdin.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func localNote(acc client.Account) string {
	if acc.Local {
		return " (local only)"
	}
	return ""
}

func takeID(cmd string, args []string) (string, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", nil, fmt.Errorf("usage: expensectl %s ID", cmd)
	}
	return args[0], args[1:], nil
}

func parseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.MoneyFromCents(cents), nil
}

// parseBudget is parseAmount that also accepts zero.
func parseBudget(s string) (core.Money, error) {
	if strings.Trim(strings.TrimSpace(s), "0.,") == "" && strings.TrimSpace(s) != "" {
		return core.Money{}, nil
	}
	return parseAmount(s)
}

func dateFlag(dst *core.Date) func(string) error {
	return func(s string) error {
		d, err := core.ParseDate(s)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

type yearMonth struct{ year, month int }

func monthFlag(fs *flag.FlagSet) *yearMonth {
	ym := &yearMonth{}
	fs.Func("month", "month YYYY-MM (default current)", func(s string) error {
		y, m, err := parseMonth(s)
		ym.year, ym.month = y, m
		return err
	})
	return ym
}

func parseMonth(s string) (int, int, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	return t.Year(), int(t.Month()), nil
}
