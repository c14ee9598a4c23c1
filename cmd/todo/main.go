package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	apiclient "github.com/orenccl/next-todolist/pkg/api/client"
	"golang.org/x/term"
)

type cliConfig struct {
	APIBaseURL   string `json:"api_base_url"`
	SessionToken string `json:"session_token"`
}

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "register":
		err = commandRegister(args)
	case "login":
		err = commandLogin(args)
	case "logout":
		err = commandLogout(args)
	case "whoami":
		err = commandWhoami(args)
	case "list":
		err = commandList(args)
	case "add":
		err = commandAdd(args)
	case "done":
		err = commandDone(args)
	case "rm":
		err = commandRemove(args)
	case "stats":
		err = commandStats(args)
	case "watch":
		err = commandWatch(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	name := fs.String("name", "", "Display name")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	if strings.TrimSpace(*name) == "" {
		return errors.New("--name is required")
	}
	secret, err := resolvePassword(*password)
	if err != nil {
		return err
	}

	cfg, client, err := openClient(*apiBase)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := client.Register(ctx, *email, secret, *name)
	if err != nil {
		return err
	}

	cfg.SessionToken = client.SessionToken()
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("registered %s (%d starter todos)\n", resp.User.Email, resp.InitialTodosCount)
	return nil
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := resolvePassword(*password)
	if err != nil {
		return err
	}

	cfg, client, err := openClient(*apiBase)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := client.Login(ctx, *email, secret)
	if err != nil {
		return err
	}

	cfg.SessionToken = client.SessionToken()
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", resp.User.Email)
	return nil
}

func commandLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	cfg, client, err := openClient(*apiBase)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.Logout(ctx); err != nil {
		return err
	}

	cfg.SessionToken = ""
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func commandWhoami(args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	_, client, err := openClient(*apiBase)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	user, err := client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>\n", user.Name, user.Email)
	return nil
}

func commandList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	page := fs.Int("page", 1, "Page number")
	limit := fs.Int("limit", 10, "Items per page")
	sortBy := fs.String("sort", "createdAt", "Sort field (createdAt, deadline, priority, title)")
	sortOrder := fs.String("order", "desc", "Sort direction (asc, desc)")
	priority := fs.String("priority", "", "Filter by priority (LOW, MEDIUM, HIGH)")
	done := fs.String("done", "", "Filter by completion (true, false)")
	search := fs.String("search", "", "Search in title and description")
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	_, client, err := openClient(*apiBase)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	result, err := client.ListTodos(ctx, apiclient.ListOptions{
		Page:      *page,
		Limit:     *limit,
		SortBy:    *sortBy,
		SortOrder: *sortOrder,
		Priority:  *priority,
		IsDone:    *done,
		Search:    *search,
	})
	if err != nil {
		return err
	}

	printTodos(result.Data)
	fmt.Printf("page %d/%d (%d total)\n", result.Pagination.Page, result.Pagination.TotalPages, result.Pagination.Total)
	return nil
}

func commandAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	title := fs.String("title", "", "Todo title")
	description := fs.String("description", "", "Optional description")
	priority := fs.String("priority", "", "Priority (LOW, MEDIUM, HIGH; default MEDIUM)")
	deadline := fs.String("deadline", "", "Deadline (RFC 3339 or YYYY-MM-DD)")
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	// Allow `todo add "buy milk"` without the flag.
	if strings.TrimSpace(*title) == "" && fs.NArg() > 0 {
		*title = strings.Join(fs.Args(), " ")
	}
	if strings.TrimSpace(*title) == "" {
		return errors.New("--title is required")
	}

	_, client, err := openClient(*apiBase)
	if err != nil {
		return err
	}

	in := apiclient.CreateTodoInput{Title: *title, Priority: *priority}
	if strings.TrimSpace(*description) != "" {
		in.Description = description
	}
	if strings.TrimSpace(*deadline) != "" {
		in.Deadline = deadline
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	todo, err := client.CreateTodo(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("created %s  %s\n", todo.ID, todo.Title)
	return nil
}

func commandDone(args []string) error {
	fs := flag.NewFlagSet("done", flag.ExitOnError)
	undo := fs.Bool("undo", false, "Mark as not done instead")
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	ids := fs.Args()
	if len(ids) == 0 {
		return errors.New("at least one todo id is required")
	}

	_, client, err := openClient(*apiBase)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if len(ids) == 1 {
		todo, err := client.UpdateTodo(ctx, ids[0], map[string]any{"isDone": !*undo})
		if err != nil {
			return err
		}
		fmt.Printf("updated %s  done=%t\n", todo.ID, todo.IsDone)
		return nil
	}

	action := "markComplete"
	if *undo {
		action = "markIncomplete"
	}
	result, err := client.Bulk(ctx, action, ids)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d affected)\n", result.Message, result.AffectedCount)
	return nil
}

func commandRemove(args []string) error {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	ids := fs.Args()
	if len(ids) == 0 {
		return errors.New("at least one todo id is required")
	}

	_, client, err := openClient(*apiBase)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if len(ids) == 1 {
		if err := client.DeleteTodo(ctx, ids[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", ids[0])
		return nil
	}

	result, err := client.Bulk(ctx, "delete", ids)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d affected)\n", result.Message, result.AffectedCount)
	return nil
}

func commandStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	period := fs.String("period", "all", "Period (all, week, month)")
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	_, client, err := openClient(*apiBase)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	stats, err := client.TodoStats(ctx, *period)
	if err != nil {
		return err
	}

	fmt.Printf("period: %s\n", stats.Period)
	fmt.Printf("total: %d  completed: %d  pending: %d  overdue: %d\n",
		stats.Total, stats.Completed, stats.Pending, stats.Overdue)
	fmt.Printf("completion rate: %.2f%%\n", stats.CompletionRate)
	fmt.Printf("priority: %d low / %d medium / %d high\n",
		stats.PriorityBreakdown.Low, stats.PriorityBreakdown.Medium, stats.PriorityBreakdown.High)
	if len(stats.RecentTodos) > 0 {
		fmt.Println("recent:")
		for _, t := range stats.RecentTodos {
			fmt.Printf("  %s  [%s]  %s\n", statusMark(t.IsDone), t.Priority, t.Title)
		}
	}
	return nil
}

// commandWatch keeps a local copy of the list and periodically checks
// the server count, reprinting when another session drifts the data.
func commandWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	interval := fs.Duration("interval", apiclient.DefaultPollInterval, "Poll interval")
	limit := fs.Int("limit", 20, "Items to display")
	apiBase := fs.String("api", "", "API base URL")
	fs.Parse(args)

	_, client, err := openClient(*apiBase)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := apiclient.NewStore()
	reload := func(ctx context.Context) error {
		result, err := client.ListTodos(ctx, apiclient.ListOptions{Limit: *limit})
		if err != nil {
			return err
		}
		store.SetConfirmed(result.Data, result.Pagination.Total)
		fmt.Printf("\n--- %s (%d total) ---\n", time.Now().Format(time.Kitchen), store.Total())
		printTodos(store.Todos())
		return nil
	}

	if err := reload(ctx); err != nil {
		return err
	}

	poller := &apiclient.DriftPoller{
		Interval: *interval,
		FetchTotal: func(ctx context.Context) (int, error) {
			stats, err := client.TodoStats(ctx, "all")
			if err != nil {
				return 0, err
			}
			return stats.Total, nil
		},
		LocalTotal: store.Total,
		Reload:     reload,
	}
	poller.Run(ctx)
	return nil
}

func openClient(apiBase string) (cliConfig, *apiclient.Client, error) {
	cfg, _ := loadConfig()
	if strings.TrimSpace(apiBase) != "" {
		cfg.APIBaseURL = apiBase
	} else if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:4000"
	}
	client, err := apiclient.New(cfg.APIBaseURL, apiclient.WithSessionToken(cfg.SessionToken))
	if err != nil {
		return cliConfig{}, nil, err
	}
	return cfg, client, nil
}

func resolvePassword(flagValue string) (string, error) {
	secret := strings.TrimSpace(flagValue)
	if secret != "" {
		return secret, nil
	}
	fmt.Print("Password: ")
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

func printTodos(todos []apiclient.Todo) {
	if len(todos) == 0 {
		fmt.Println("no todos")
		return
	}
	for _, t := range todos {
		deadline := ""
		if t.Deadline != nil {
			deadline = "  due " + t.Deadline.Format("2006-01-02")
		}
		fmt.Printf("%s  [%-6s]  %-40s%s  %s\n", statusMark(t.IsDone), t.Priority, t.Title, deadline, t.ID)
	}
}

func statusMark(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: "http://localhost:4000"}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:4000"
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "next-todolist", "config.json"), nil
}

func printUsage() {
	fmt.Printf("todo CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	todo register --email user@example.com --name "Your Name" [--password secret]
	todo login --email user@example.com [--password secret] [--api http://localhost:4000]
	todo logout
	todo whoami
	todo list [--page N] [--limit N] [--sort field] [--order asc|desc] [--priority P] [--done true|false] [--search text]
	todo add --title "Buy milk" [--description text] [--priority HIGH] [--deadline 2026-09-01]
	todo done [--undo] <id> [id...]
	todo rm <id> [id...]
	todo stats [--period all|week|month]
	todo watch [--interval 30s] [--limit N]
	todo version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
