package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/lMazer/pocket-finance-dashboard/api"
	"github.com/lMazer/pocket-finance-dashboard/auth"
	"github.com/lMazer/pocket-finance-dashboard/finance"
	"github.com/lMazer/pocket-finance-dashboard/internal/config"
	"github.com/lMazer/pocket-finance-dashboard/internal/utils"
	"github.com/lMazer/pocket-finance-dashboard/reports"
	"github.com/lMazer/pocket-finance-dashboard/session"
)

const appName = "Pocket Finance"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// app bundles the wired-up services handed to each command.
type app struct {
	auth         *auth.Service
	store        *session.Store
	transactions *finance.TransactionsService
	categories   *finance.CategoriesService
	budgets      *finance.BudgetsService
	reports      *reports.Service
	log          zerolog.Logger
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if len(args) == 0 || args[0] == "help" {
		displayAppname(appName)
		usage()
		return nil
	}

	cfg, err := config.LoadFromFile(config.DefaultPath())
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.API.Timeout)
	defer cancel()

	// Reconcile a possibly-stale persisted session before any command runs.
	if err := a.auth.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	return dispatch(ctx, a, args[0], args[1:])
}

func buildApp(cfg config.Config, logger zerolog.Logger) (*app, error) {
	store := session.NewStore(
		session.NewFileStorage(cfg.Session.File),
		session.WithLogger(logger),
	)

	// Every backend call, auth included, goes through the gatekeeper: /me and
	// logout get credentials attached, login/refresh pass through untouched.
	// The refresher is wired into the transport after the service exists.
	transport := auth.NewTransport(store, nil,
		auth.WithAPIPath(apiPathOf(cfg.API.BaseURL)),
		auth.WithTransportLogger(logger),
		auth.WithLoginRedirect(func() {
			fmt.Fprintln(os.Stderr, "Session expired. Run `pocketcli login` to sign in again.")
		}),
	)

	authedClient := api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithClientLogger(logger),
		api.WithTransport(transport),
	)
	authService, err := auth.NewService(authedClient, store, auth.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	transport.SetRefresher(authService)

	return &app{
		auth:         authService,
		store:        store,
		transactions: finance.NewTransactionsService(authedClient),
		categories:   finance.NewCategoriesService(authedClient),
		budgets:      finance.NewBudgetsService(authedClient),
		reports:      reports.NewService(authedClient),
		log:          logger,
	}, nil
}

func dispatch(ctx context.Context, a *app, command string, args []string) error {
	switch command {
	case "login":
		return cmdLogin(ctx, a, args)
	case "logout":
		return cmdLogout(ctx, a)
	case "whoami":
		return cmdWhoami(a)
	case "tx":
		return cmdTransactions(ctx, a, args)
	case "categories":
		return cmdCategories(ctx, a, args)
	case "budgets":
		return cmdBudgets(ctx, a, args)
	case "import":
		return cmdImport(ctx, a, args)
	case "export":
		return cmdExport(ctx, a, args)
	case "health":
		return cmdHealth(ctx, a)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		return errors.New("login requires -email")
	}
	if *password == "" {
		fmt.Print("Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		*password = strings.TrimSpace(line)
	}

	sess, err := a.auth.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%s)\n", sess.User.FullName, sess.User.Email)
	return nil
}

func cmdLogout(ctx context.Context, a *app) error {
	if err := a.auth.Logout(ctx); err != nil {
		// Session is already gone locally; the revoke call is best effort.
		a.log.Warn().Err(err).Msg("logout call failed")
	}
	fmt.Println("Logged out.")
	return nil
}

func cmdWhoami(a *app) error {
	user := a.store.CurrentUser()
	if user == nil || !a.store.HasSession() {
		fmt.Println("Not logged in.")
		return nil
	}
	state := "valid"
	if !a.store.IsAuthenticated() {
		state = "expired, will refresh on next call"
	}
	fmt.Printf("%s <%s> (access token %s)\n", user.FullName, user.Email, state)
	return nil
}

func cmdTransactions(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "list":
		fs := flag.NewFlagSet("tx list", flag.ContinueOnError)
		month := fs.String("month", "", "filter by month (YYYY-MM)")
		category := fs.String("category", "", "filter by category id")
		txType := fs.String("type", "", "INCOME or EXPENSE")
		search := fs.String("q", "", "free-text search")
		all := fs.Bool("all", false, "fetch every page")
		if err := fs.Parse(rest); err != nil {
			return err
		}

		query := finance.TransactionQuery{
			Month:    *month,
			Category: *category,
			Type:     finance.TransactionType(*txType),
			Search:   *search,
		}

		var items []finance.Transaction
		if *all {
			list, err := a.transactions.ListAll(ctx, query)
			if err != nil {
				return err
			}
			items = list
		} else {
			page, err := a.transactions.List(ctx, query)
			if err != nil {
				return err
			}
			items = page.Items
			fmt.Printf("Page %d/%d (%d total)\n", page.Page+1, page.TotalPages, page.TotalElements)
		}
		for _, tx := range items {
			fmt.Printf("%s  %-7s  %10.2f  %-20s  %s\n", tx.Date, tx.Type, tx.Amount, tx.CategoryName, tx.Description)
		}
		return nil

	case "add":
		fs := flag.NewFlagSet("tx add", flag.ContinueOnError)
		category := fs.String("category", "", "category id")
		txType := fs.String("type", string(finance.TypeExpense), "INCOME or EXPENSE")
		description := fs.String("description", "", "description")
		amount := fs.Float64("amount", 0, "amount")
		date := fs.String("date", time.Now().Format("2006-01-02"), "date (YYYY-MM-DD)")
		if err := fs.Parse(rest); err != nil {
			return err
		}

		tx, err := a.transactions.Create(ctx, finance.TransactionCreateRequest{
			CategoryID:  *category,
			Type:        finance.TransactionType(*txType),
			Description: *description,
			Amount:      *amount,
			Date:        *date,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created transaction %s\n", tx.ID)
		return nil

	case "set-amount":
		fs := flag.NewFlagSet("tx set-amount", flag.ContinueOnError)
		id := fs.String("id", "", "transaction id")
		amount := fs.Float64("amount", 0, "new amount")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *id == "" {
			return errors.New("tx set-amount requires -id")
		}

		tx, err := a.transactions.Update(ctx, *id, finance.TransactionUpdateRequest{
			Amount: utils.Ptr(*amount),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Updated transaction %s: %.2f\n", tx.ID, tx.Amount)
		return nil

	case "rm":
		if len(rest) != 1 {
			return errors.New("usage: tx rm <id>")
		}
		if err := a.transactions.Delete(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Println("Deleted.")
		return nil

	default:
		return fmt.Errorf("unknown tx subcommand %q", sub)
	}
}

func cmdCategories(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "list":
		categories, err := a.categories.List(ctx)
		if err != nil {
			return err
		}
		for _, c := range categories {
			fmt.Printf("%s  %-20s  %s\n", c.ID, c.Name, c.Color)
		}
		return nil

	case "add":
		fs := flag.NewFlagSet("categories add", flag.ContinueOnError)
		name := fs.String("name", "", "category name")
		color := fs.String("color", "#808080", "display color")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		category, err := a.categories.Create(ctx, finance.CategoryRequest{Name: *name, Color: *color})
		if err != nil {
			return err
		}
		fmt.Printf("Created category %s\n", category.ID)
		return nil

	case "rm":
		if len(rest) != 1 {
			return errors.New("usage: categories rm <id>")
		}
		if err := a.categories.Delete(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Println("Deleted.")
		return nil

	default:
		return fmt.Errorf("unknown categories subcommand %q", sub)
	}
}

func cmdBudgets(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "list":
		fs := flag.NewFlagSet("budgets list", flag.ContinueOnError)
		month := fs.String("month", "", "filter by month (YYYY-MM)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		budgets, err := a.budgets.List(ctx, *month)
		if err != nil {
			return err
		}
		for _, b := range budgets {
			fmt.Printf("%s  %-20s  %10.2f\n", b.Month, b.CategoryName, b.Amount)
		}
		return nil

	case "set":
		fs := flag.NewFlagSet("budgets set", flag.ContinueOnError)
		month := fs.String("month", "", "month (YYYY-MM)")
		category := fs.String("category", "", "category id")
		amount := fs.Float64("amount", 0, "budget amount")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		budget, err := a.budgets.Create(ctx, finance.BudgetCreateRequest{
			Month:      *month,
			CategoryID: *category,
			Amount:     *amount,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Budget %s: %.2f for %s\n", budget.ID, budget.Amount, budget.Month)
		return nil

	default:
		return fmt.Errorf("unknown budgets subcommand %q", sub)
	}
}

func cmdImport(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: import <file.csv>")
	}
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	result, err := a.reports.ImportCSV(ctx, file.Name(), file)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d transactions, skipped %d rows.\n", result.Imported, result.Skipped)
	return nil
}

func cmdExport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	month := fs.String("month", "", "filter by month (YYYY-MM)")
	category := fs.String("category", "", "filter by category id")
	out := fs.String("out", "transactions.csv", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	file, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer file.Close()

	name, err := a.reports.ExportCSV(ctx, reports.ExportQuery{Month: *month, Category: *category}, file)
	if err != nil {
		return err
	}
	if name == "" {
		name = *out
	}
	fmt.Printf("Exported %s to %s\n", name, *out)
	return nil
}

func cmdHealth(ctx context.Context, a *app) error {
	status, err := a.reports.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Backend status: %s\n", status.Status)
	return nil
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// apiPathOf extracts the path prefix of the base URL so the gatekeeper can
// tell backend calls apart from anything else sharing the transport.
func apiPathOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Path == "" {
		return "/api"
	}
	return strings.TrimRight(u.Path, "/")
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

func usage() {
	fmt.Println(`Usage: pocketcli <command> [flags]

Commands:
  login      -email <email> [-password <password>]
  logout
  whoami
  tx         list|add|set-amount|rm
  categories list|add|rm
  budgets    list|set
  import     <file.csv>
  export     [-month YYYY-MM] [-category id] [-out file]
  health`)
}
