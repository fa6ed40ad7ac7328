package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"

	"github.com/vyrodovalexey/avabank/internal/bank"
	"github.com/vyrodovalexey/avabank/internal/navigation"
	"github.com/vyrodovalexey/avabank/internal/observability"
)

// guardFunc decides whether a route may be entered.
type guardFunc func(check navigation.UserCheck, route string) string

// command is one bankctl subcommand. Commands with a route are visited
// through their guard before they run.
type command struct {
	usage string
	route string
	guard guardFunc
	run   func(ctx context.Context, a *application, args []string, out io.Writer) error
}

var commands = map[string]command{
	"login":         {usage: "login -email E -password P", run: runLogin},
	"logout":        {usage: "logout", run: runLogout},
	"whoami":        {usage: "whoami", run: runWhoAmI},
	"signup":        {usage: "signup -name N -email E -password P", route: navigation.RouteSignUp, run: runSignUp},
	"products":      {usage: "products", route: navigation.RouteHome, run: runProducts},
	"open-account":  {usage: "open-account -name N -phone P -type savings|checking|business", route: navigation.RouteDashboard, guard: navigation.RequireUser, run: runOpenAccount},
	"balance":       {usage: "balance", route: navigation.RouteDashboard, guard: navigation.RequireUser, run: runBalance},
	"history":       {usage: "history [-search Q] [-type T] [-window today|week|month]", route: navigation.RouteDashboard + "/history", guard: navigation.RequireUser, run: runHistory},
	"send":          {usage: "send -to ACCOUNT -amount N [-description D]", route: navigation.RouteDashboard + "/send-money", guard: navigation.RequireUser, run: runSend},
	"withdraw":      {usage: "withdraw -amount N [-description D]", route: navigation.RouteDashboard + "/withdraw", guard: navigation.RequireUser, run: runWithdraw},
	"request-money": {usage: "request-money -amount N [-description D]", route: navigation.RouteDashboard + "/request-money", guard: navigation.RequireUser, run: runRequestMoney},
	"loan":          {usage: "loan -type T -amount N -term M -purpose P -employment E -income N -existing-loans=false", route: navigation.RouteDashboard + "/loan", guard: navigation.RequireUser, run: runApplyLoan},
	"loans":         {usage: "loans", route: navigation.RouteDashboard + "/loans", guard: navigation.RequireUser, run: runLoans},
	"chequebook":    {usage: "chequebook -type T -pages 25|50|100 -reason R", route: navigation.RouteDashboard + "/chequebook", guard: navigation.RequireUser, run: runChequeBook},
	"watch":         {usage: "watch [-interval D] [-metrics]", route: navigation.RouteDashboard, guard: navigation.RequireUser, run: runWatch},
	"deposit":       {usage: "deposit -account ACCOUNT -amount N [-description D]", route: navigation.RouteAdmin + "/deposit", guard: navigation.RequireAdmin, run: runDeposit},
	"accounts":      {usage: "accounts", route: navigation.RouteAdmin + "/accounts", guard: navigation.RequireAdmin, run: runAccounts},
	"transactions":  {usage: "transactions [-search Q] [-type T] [-window today|week|month]", route: navigation.RouteAdmin + "/transactions", guard: navigation.RequireAdmin, run: runTransactions},
	"requests":      {usage: "requests -kind loan|chequebook|money", route: navigation.RouteAdmin + "/requests", guard: navigation.RequireAdmin, run: runRequests},
	"status":        {usage: "status -kind loan|chequebook|money -id ID -status S", route: navigation.RouteAdmin + "/requests", guard: navigation.RequireAdmin, run: runStatus},
	"stats":         {usage: "stats [-days N]", route: navigation.RouteAdminDashboard, guard: navigation.RequireAdmin, run: runStats},
}

// printCommands lists the commands in name order.
func printCommands(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, commands[name].usage)
	}
	_ = tw.Flush()
}

// execute runs the named command.
func (a *application) execute(ctx context.Context, name string, args []string, out io.Writer) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	if cmd.route != "" {
		if err := a.visit(ctx, cmd.route, cmd.guard); err != nil {
			return err
		}
	}

	a.logger.Debug("running command",
		observability.String("command", name),
		observability.String("route", a.router.Current()),
	)
	return cmd.run(ctx, a, args, out)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func runLogin(ctx context.Context, a *application, args []string, out io.Writer) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", getEnvOrDefault("BANK_PASSWORD", ""), "password (or BANK_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("login requires -email and -password")
	}

	user, err := a.session.SignIn(ctx, *email, *password)
	if err != nil {
		return err
	}

	// A guard redirect, in this process or an earlier one, remembered the
	// original destination.
	from := a.takeRedirect(ctx)

	home := navigation.RouteDashboard
	if user.IsAdmin() {
		home = navigation.RouteAdminDashboard
	}
	if err := a.router.NavigateTo(ctx, navigation.RedirectTarget(from, home)); err != nil {
		return err
	}

	fmt.Fprintf(out, "signed in as %s (%s)\n", user.Email, user.Role)
	return nil
}

func runLogout(ctx context.Context, a *application, _ []string, out io.Writer) error {
	if err := a.session.EndSession(ctx); err != nil {
		return err
	}
	if err := a.router.NavigateTo(ctx, navigation.RouteLogin); err != nil {
		return err
	}
	fmt.Fprintln(out, "signed out")
	return nil
}

func runWhoAmI(_ context.Context, a *application, _ []string, out io.Writer) error {
	user, ok := a.session.Current()
	if !ok {
		return errNotSignedIn
	}
	fmt.Fprintf(out, "%s <%s> role=%s expires=%s\n",
		user.Name, user.Email, user.Role, user.ExpiresAt.Format(time.RFC3339))
	return nil
}

func runSignUp(ctx context.Context, a *application, args []string, out io.Writer) error {
	fs := newFlagSet("signup")
	var form bank.SignUpRequest
	fs.StringVar(&form.Name, "name", "", "full name")
	fs.StringVar(&form.Email, "email", "", "email")
	fs.StringVar(&form.Password, "password", getEnvOrDefault("BANK_PASSWORD", ""), "password (or BANK_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := a.bank.SignUp(ctx, form); err != nil {
		return err
	}
	fmt.Fprintf(out, "registered %s, run: bankctl login -email %s\n", form.Email, form.Email)
	return nil
}

func runProducts(ctx context.Context, a *application, _ []string, out io.Writer) error {
	products, err := a.bank.Products(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tTITLE")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ProductID, p.Category, p.Title)
	}
	return tw.Flush()
}

func runOpenAccount(ctx context.Context, a *application, args []string, out io.Writer) error {
	user, ok := a.session.Current()
	if !ok {
		return errNotSignedIn
	}

	fs := newFlagSet("open-account")
	form := bank.NewAccount{Email: user.Email}
	fs.StringVar(&form.Name, "name", user.Name, "account holder name")
	fs.StringVar(&form.Phone, "phone", "", "phone number")
	fs.StringVar(&form.AccountType, "type", bank.AccountSavings, "account type")
	fs.StringVar(&form.ProfileImage, "profile-image", "", "profile image URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := a.bank.CreateAccount(ctx, form)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "account created (%s)\n", res.InsertedID)
	return nil
}

func runBalance(ctx context.Context, a *application, _ []string, out io.Writer) error {
	_, acct, err := a.currentAccount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s %s\n", acct.AccountNumber, acct.AccountType, bank.FormatAmount(language.English, acct.Deposit))
	return nil
}

func runHistory(ctx context.Context, a *application, args []string, out io.Writer) error {
	filter, err := parseTransactionFilter("history", args)
	if err != nil {
		return err
	}
	user, ok := a.session.Current()
	if !ok {
		return errNotSignedIn
	}
	txs, err := a.bank.History(ctx, user.Email)
	if err != nil {
		return err
	}
	return writeTransactions(out, bank.FilterTransactions(txs, filter), false)
}

func runTransactions(ctx context.Context, a *application, args []string, out io.Writer) error {
	filter, err := parseTransactionFilter("transactions", args)
	if err != nil {
		return err
	}
	txs, err := a.bank.AllTransactions(ctx)
	if err != nil {
		return err
	}
	return writeTransactions(out, bank.FilterTransactions(txs, filter), true)
}

// parseTransactionFilter reads the -search, -type and -window flags.
func parseTransactionFilter(name string, args []string) (bank.TransactionFilter, error) {
	fs := newFlagSet(name)
	var filter bank.TransactionFilter
	fs.StringVar(&filter.Query, "search", "", "account number, email or description")
	fs.StringVar(&filter.Type, "type", bank.TypeAll, "send-money, withdraw, deposit, other or all")
	window := fs.String("window", bank.WindowAll, "today, week, month or all")
	if err := fs.Parse(args); err != nil {
		return filter, err
	}

	since, err := bank.WindowStart(*window, time.Now())
	if err != nil {
		return filter, err
	}
	filter.Since = since
	return filter, nil
}

// writeTransactions prints txs newest first. Admin listings add the
// parties.
func writeTransactions(out io.Writer, txs []bank.Transaction, parties bool) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if parties {
		fmt.Fprintln(tw, "DATE\tTYPE\tFROM\tTO\tAMOUNT\tDESCRIPTION")
	} else {
		fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tDESCRIPTION")
	}
	for _, tx := range bank.NewestFirst(txs) {
		date := tx.CreatedAt.UTC().Format(time.DateTime)
		amount := bank.FormatAmount(language.English, tx.Amount)
		if parties {
			from := firstNonEmpty(tx.SenderAccountNumber, tx.AccountNumber)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				date, tx.Kind(), from, tx.RecipientAccountNumber, amount, tx.Description)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", date, tx.Kind(), amount, tx.Description)
	}
	return tw.Flush()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return "-"
}

func runSend(ctx context.Context, a *application, args []string, out io.Writer) error {
	fs := newFlagSet("send")
	var form bank.Transfer
	fs.StringVar(&form.RecipientAccountNumber, "to", "", "recipient account number")
	fs.Float64Var(&form.Amount, "amount", 0, "amount")
	fs.StringVar(&form.Description, "description", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, acct, err := a.currentAccount(ctx)
	if err != nil {
		return err
	}
	if _, err := a.bank.SendMoney(ctx, acct, form); err != nil {
		return err
	}
	fmt.Fprintf(out, "sent %s to %s\n", bank.FormatAmount(language.English, form.Amount), form.RecipientAccountNumber)
	return nil
}

func runWithdraw(ctx context.Context, a *application, args []string, out io.Writer) error {
	fs := newFlagSet("withdraw")
	var form bank.Withdrawal
	fs.Float64Var(&form.Amount, "amount", 0, "amount")
	fs.StringVar(&form.Description, "description", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, acct, err := a.currentAccount(ctx)
	if err != nil {
		return err
	}
	if _, err := a.bank.Withdraw(ctx, acct, form); err != nil {
		return err
	}
	fmt.Fprintf(out, "withdrew %s\n", bank.FormatAmount(language.English, form.Amount))
	return nil
}

func runRequestMoney(ctx context.Context, a *application, args []string, out io.Writer) error {
	fs := newFlagSet("request-money")
	var form bank.MoneyRequestForm
	fs.Float64Var(&form.Amount, "amount", 0, "amount")
	fs.StringVar(&form.Description, "description", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, acct, err := a.currentAccount(ctx)
	if err != nil {
		return err
	}
	res, err := a.bank.RequestMoney(ctx, acct, form)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "balance request %s submitted\n", res.InsertedID)
	return nil
}

func runApplyLoan(ctx context.Context, a *application, args []string, out io.Writer) error {
	fs := newFlagSet("loan")
	var form bank.LoanForm
	var existing string
	fs.StringVar(&form.LoanType, "type", bank.LoanPersonal, "loan type")
	fs.Float64Var(&form.LoanAmount, "amount", 0, "loan amount")
	fs.IntVar(&form.LoanTerm, "term", 12, "term in months")
	fs.StringVar(&form.Purpose, "purpose", "", "purpose")
	fs.StringVar(&form.EmploymentStatus, "employment", "employed", "employment status")
	fs.Float64Var(&form.AnnualIncome, "income", 0, "annual income")
	fs.StringVar(&existing, "existing-loans", "", "whether other loans are running (true or false)")
	fs.BoolVar(&form.Collateral, "collateral", false, "collateral offered")
	fs.Float64Var(&form.CollateralValue, "collateral-value", 0, "collateral value")
	fs.StringVar(&form.Description, "description", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch existing {
	case "true":
		form.ExistingLoans = boolPtr(true)
	case "false":
		form.ExistingLoans = boolPtr(false)
	}

	_, acct, err := a.currentAccount(ctx)
	if err != nil {
		return err
	}
	res, err := a.bank.ApplyLoan(ctx, acct, form)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "loan application %s submitted\n", res.InsertedID)
	return nil
}

func boolPtr(b bool) *bool { return &b }

func runLoans(ctx context.Context, a *application, _ []string, out io.Writer) error {
	user, ok := a.session.Current()
	if !ok {
		return errNotSignedIn
	}
	loans, err := a.bank.UserLoans(ctx, user.Email)
	if err != nil {
		return err
	}
	return writeLoans(out, loans)
}

func runChequeBook(ctx context.Context, a *application, args []string, out io.Writer) error {
	fs := newFlagSet("chequebook")
	var form bank.ChequeBookForm
	fs.StringVar(&form.AccountType, "type", "savings", "account type")
	fs.IntVar(&form.NumPages, "pages", 25, "number of leaves")
	fs.StringVar(&form.Reason, "reason", "", "reason")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, acct, err := a.currentAccount(ctx)
	if err != nil {
		return err
	}
	res, err := a.bank.RequestChequeBook(ctx, acct, form)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "cheque book request %s submitted\n", res.InsertedID)
	return nil
}

func runDeposit(ctx context.Context, a *application, args []string, out io.Writer) error {
	fs := newFlagSet("deposit")
	number := fs.String("account", "", "account number")
	amount := fs.Float64("amount", 0, "amount")
	description := fs.String("description", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	acct, err := a.bank.AccountByNumber(ctx, *number)
	if err != nil {
		return err
	}
	_, err = a.bank.Deposit(ctx, bank.DepositRequest{
		AccountNumber: acct.AccountNumber,
		Email:         acct.Email,
		Name:          acct.Name,
		Amount:        *amount,
		Description:   *description,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "deposited %s into %s\n", bank.FormatAmount(language.English, *amount), acct.AccountNumber)
	return nil
}

func runAccounts(ctx context.Context, a *application, _ []string, out io.Writer) error {
	accounts, err := a.bank.AllAccounts(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tEMAIL\tTYPE\tBALANCE")
	for _, acct := range bank.NewestFirst(accounts) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			acct.AccountNumber, acct.Email, acct.AccountType, bank.FormatAmount(language.English, acct.Deposit))
	}
	return tw.Flush()
}

// Request kinds accepted by the requests and status commands.
const (
	kindLoan       = "loan"
	kindChequeBook = "chequebook"
	kindMoney      = "money"
)

func runRequests(ctx context.Context, a *application, args []string, out io.Writer) error {
	fs := newFlagSet("requests")
	kind := fs.String("kind", kindMoney, "loan, chequebook or money")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	switch *kind {
	case kindLoan:
		loans, err := a.bank.AllLoans(ctx)
		if err != nil {
			return err
		}
		return writeLoans(out, loans)
	case kindChequeBook:
		reqs, err := a.bank.AllChequeRequests(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tACCOUNT\tPAGES\tSTATUS")
		for _, r := range bank.NewestFirst(reqs) {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.AccountNumber, r.NumPages, statusOrPending(r.Status))
		}
	case kindMoney:
		reqs, err := a.bank.AllMoneyRequests(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tACCOUNT\tAMOUNT\tSTATUS")
		for _, r := range bank.NewestFirst(reqs) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				r.ID, r.AccountNumber, bank.FormatAmount(language.English, r.Amount), statusOrPending(r.Status))
		}
	default:
		return fmt.Errorf("unknown request kind %q", *kind)
	}
	return tw.Flush()
}

func runStatus(ctx context.Context, a *application, args []string, out io.Writer) error {
	fs := newFlagSet("status")
	kind := fs.String("kind", kindMoney, "loan, chequebook or money")
	id := fs.String("id", "", "request id")
	status := fs.String("status", "", "new status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || *status == "" {
		return errors.New("status requires -id and -status")
	}
	to := bank.Status(*status)

	var err error
	switch *kind {
	case kindLoan:
		err = setLoanStatus(ctx, a.bank, *id, to)
	case kindChequeBook:
		err = setChequeStatus(ctx, a.bank, *id, to)
	case kindMoney:
		err = setMoneyStatus(ctx, a.bank, *id, to)
	default:
		err = fmt.Errorf("unknown request kind %q", *kind)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s is now %s\n", *kind, *id, to)
	return nil
}

var errRequestNotFound = errors.New("request not found")

func setLoanStatus(ctx context.Context, c *bank.Client, id string, to bank.Status) error {
	loans, err := c.AllLoans(ctx)
	if err != nil {
		return err
	}
	for _, l := range loans {
		if l.ID == id {
			_, err := c.SetLoanStatus(ctx, l, to)
			return err
		}
	}
	return fmt.Errorf("loan %s: %w", id, errRequestNotFound)
}

func setChequeStatus(ctx context.Context, c *bank.Client, id string, to bank.Status) error {
	reqs, err := c.AllChequeRequests(ctx)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		if r.ID == id {
			_, err := c.SetChequeStatus(ctx, r, to)
			return err
		}
	}
	return fmt.Errorf("cheque book request %s: %w", id, errRequestNotFound)
}

// setMoneyStatus changes a balance request. Approval also credits the
// requested amount.
func setMoneyStatus(ctx context.Context, c *bank.Client, id string, to bank.Status) error {
	reqs, err := c.AllMoneyRequests(ctx)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		if r.ID != id {
			continue
		}
		if to == bank.StatusApproved {
			return c.ApproveMoneyRequest(ctx, r)
		}
		_, err := c.SetMoneyRequestStatus(ctx, r, to)
		return err
	}
	return fmt.Errorf("balance request %s: %w", id, errRequestNotFound)
}

func runStats(ctx context.Context, a *application, args []string, out io.Writer) error {
	fs := newFlagSet("stats")
	days := fs.Int("days", 7, "number of trailing days to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	summary, err := a.bank.Dashboard(ctx)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, summary.Report(language.English, *days))
	return err
}

func writeLoans(out io.Writer, loans []bank.LoanApplication) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tAMOUNT\tTERM\tSTATUS")
	for _, l := range bank.NewestFirst(loans) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			l.ID, l.LoanType, bank.FormatAmount(language.English, l.LoanAmount), l.LoanTerm, statusOrPending(l.Status))
	}
	return tw.Flush()
}

func statusOrPending(s bank.Status) string {
	if s == "" {
		return string(bank.StatusPending)
	}
	return string(s)
}
