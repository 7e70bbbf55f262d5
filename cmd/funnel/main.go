package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pbaille/funnel/internal/api"
	"github.com/pbaille/funnel/internal/auth"
	"github.com/pbaille/funnel/internal/classifier"
	"github.com/pbaille/funnel/internal/config"
	"github.com/pbaille/funnel/internal/domain"
	"github.com/pbaille/funnel/internal/fetcher"
	"github.com/pbaille/funnel/internal/logger"
	"github.com/pbaille/funnel/internal/service"
	"github.com/pbaille/funnel/internal/store"
)

var (
	configFile string
	dbPath     string
	userID     string
)

// app holds the collaborators shared by every command
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	store *store.Store
	svc   *service.Service
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "funnel",
		Short:         "Track learning resources and turn them into a roadmap",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./funnel.yaml or ~/.funnel/funnel.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "user id (overrides config)")

	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(progressCmd())
	rootCmd.AddCommand(completeCmd())
	rootCmd.AddCommand(notesCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(roadmapCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(categorizeCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if userID != "" {
		cfg.User.ID = userID
	}

	log, err := logger.New(cfg.App.Mode, cfg.App.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

// newApp opens the store and wires the service. Callers must close it.
func newApp() (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	f := fetcher.New(cfg.Fetch.Timeout, cfg.Fetch.UserAgent, log)
	svc := service.New(s, classifier.Default(), f, cfg.Import.Concurrency, log)

	return &app{cfg: cfg, log: log, store: s, svc: svc}, nil
}

func (a *app) Close() {
	a.store.Close()
	a.log.Sync()
}

func (a *app) user() string {
	return a.cfg.User.ID
}

func addCmd() *cobra.Command {
	var title, notes string

	cmd := &cobra.Command{
		Use:   "add [url or file]",
		Short: "Add a resource from a URL or a local file",
		Long: `Add a resource. URLs get their title and description from the page
when --title or --notes are not given. Local .txt, .md and .html files
use the file name as title and the file content as notes unless --title
or --notes are given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			target := args[0]

			var r *domain.Resource
			if fetcher.IsURL(target) {
				r, err = a.svc.AddURL(ctx, a.user(), target, domain.NewResource{Title: title, Notes: notes})
			} else {
				r, err = a.svc.AddFile(ctx, a.user(), target, domain.NewResource{Title: title, Notes: notes})
			}
			if err != nil {
				return err
			}

			fmt.Printf("Added resource: %s\n", r.ID[:8])
			fmt.Printf("Title: %s\n", truncate(r.Title, 80))
			printCategories(os.Stdout, r.Categories)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "resource title")
	cmd.Flags().StringVar(&notes, "notes", "", "resource notes")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		filter domain.ResourceFilter
		sort   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			filter.Sort = domain.SortOption(sort)
			resources, err := a.svc.List(cmd.Context(), a.user(), filter)
			if err != nil {
				return err
			}

			if len(resources) == 0 {
				fmt.Println("No resources yet. Use 'funnel add' to create one.")
				return nil
			}

			printResources(os.Stdout, resources)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "search title and notes")
	cmd.Flags().StringVarP(&filter.Category, "category", "c", "", "only resources in this category")
	cmd.Flags().StringVar(&sort, "sort", string(domain.SortDateDesc), "date-desc, date-asc, title or progress")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "number of resources to show")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show resource details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.svc.Get(cmd.Context(), a.user(), args[0])
			if err != nil {
				return err
			}

			printResource(os.Stdout, r)
			return nil
		},
	}
}

func progressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress [id] [percent]",
		Short: "Set a resource's progress (0-100)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseProgress(args[1])
			if err != nil {
				return err
			}
			return update(cmd.Context(), args[0], domain.ResourceUpdate{Progress: &p})
		},
	}
}

// parseProgress accepts a whole number, optionally followed by %.
// Out-of-range values are clamped by the service.
func parseProgress(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return 0, fmt.Errorf("progress must be a whole number: %q", s)
	}
	return p, nil
}

func completeCmd() *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "complete [id]",
		Short: "Mark a resource as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			done := !undo
			return update(cmd.Context(), args[0], domain.ResourceUpdate{IsCompleted: &done})
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "mark as not completed")
	return cmd
}

func notesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notes [id] [notes]",
		Short: "Replace a resource's notes and recategorize it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes := strings.Join(args[1:], " ")
			return update(cmd.Context(), args[0], domain.ResourceUpdate{Notes: &notes})
		},
	}
}

func update(ctx context.Context, id string, upd domain.ResourceUpdate) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.svc.Update(ctx, a.user(), id, upd)
	if err != nil {
		return err
	}

	printResource(os.Stdout, r)
	return nil
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.Delete(cmd.Context(), a.user(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted resource: %s\n", args[0])
			return nil
		},
	}
}

func roadmapCmd() *cobra.Command {
	var (
		filter domain.ResourceFilter
		format string
	)

	cmd := &cobra.Command{
		Use:   "roadmap",
		Short: "Show the learning roadmap",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			nodes, err := a.svc.Roadmap(cmd.Context(), a.user(), filter)
			if err != nil {
				return err
			}

			return renderRoadmap(os.Stdout, nodes, format)
		},
	}

	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "only resources matching this text")
	cmd.Flags().StringVarP(&filter.Category, "category", "c", "", "only resources in this category")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or yaml")
	return cmd
}

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			cats, err := a.svc.Categories(cmd.Context(), a.user())
			if err != nil {
				return err
			}

			if len(cats) == 0 {
				fmt.Println("No categories yet. Categories come from resource titles and notes.")
				return nil
			}

			for _, c := range cats {
				fmt.Printf("%-14s %d\n", c.Name, c.Count)
			}
			return nil
		},
	}
}

func categorizeCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "categorize [text]",
		Short: "Preview the categories a text would get",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			clf := classifier.Default()

			if verbose {
				for _, s := range clf.Scores(text, "") {
					fmt.Printf("%-14s %d\n", s.Category, s.Matches)
				}
				return nil
			}

			printCategories(os.Stdout, clf.Categorize(text, ""))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show match counts")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Add every URL found in a file (or stdin with -)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = os.Stdin
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open file: %w", err)
				}
				defer f.Close()
				in = bufio.NewReader(f)
			}

			urls, err := fetcher.ReadLinks(in)
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				fmt.Println("No URLs found.")
				return nil
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Printf("Importing %d URLs...\n", len(urls))
			results, err := a.svc.Import(cmd.Context(), a.user(), urls)
			if err != nil {
				return err
			}

			added := 0
			for _, res := range results {
				if res.Err != nil {
					fmt.Printf("  ! %s: %v\n", res.URL, res.Err)
					continue
				}
				added++
				fmt.Printf("  + %s  %s\n", res.Resource.ID[:8], truncate(res.Resource.Title, 60))
			}
			fmt.Printf("Added %d of %d\n", added, len(results))
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for the configured user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			authn, err := auth.New(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
			if err != nil {
				return err
			}
			token, err := authn.IssueToken(cfg.User.ID)
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			var authn *auth.Authenticator
			if a.cfg.Auth.JWTSecret != "" {
				authn, err = auth.New(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer, a.cfg.Auth.TokenTTL)
				if err != nil {
					return err
				}
			} else {
				a.log.Warn("auth.jwt_secret not set, serving every request as the configured user", "user", a.user())
			}

			server := api.New(a.svc, api.Options{
				Addr:           a.cfg.Server.Addr,
				AllowedOrigins: a.cfg.Server.AllowedOrigins,
				Auth:           authn,
				DefaultUser:    a.user(),
				Logger:         a.log,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (overrides config)")
	return cmd
}
