package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"furusatoReco/business/feed"
	"furusatoReco/domain"
	"furusatoReco/internal/bootstrap"
	"furusatoReco/pkg/config"
	"furusatoReco/pkg/database"
	"furusatoReco/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reco-cli",
	Short: "furusato-reco operator tool",
	Long:  `reco-cli migrates the engine's tables, prints the effective judgment modules and runs one-shot recommendations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.App.Environment)
		cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	SilenceUsage: true,
}

type configKey struct{}

func configFrom(cmd *cobra.Command) *config.Config {
	return cmd.Context().Value(configKey{}).(*config.Config)
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(modulesCmd)
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().String("user", "", "load the profile of this user id from the users table")
	recommendCmd.Flags().Int("ceiling", 0, "spending ceiling in yen (inline profile)")
	recommendCmd.Flags().Int("spent", 0, "amount already spent this period (inline profile)")
	recommendCmd.Flags().Bool("married", false, "married (inline profile)")
	recommendCmd.Flags().Int("dependents", 0, "number of dependents (inline profile)")
	recommendCmd.Flags().StringSlice("categories", nil, "categories to search, in order")
	recommendCmd.Flags().StringSlice("allergies", nil, "allergy terms (inline profile)")
	recommendCmd.Flags().Int("pages", 1, "number of consecutive pages to fetch")
	recommendCmd.Flags().Bool("json", false, "print pages as JSON")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the cache and module tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.InitPostgres(configFrom(cmd))
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Println("migrations applied")
		return nil
	},
}

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Print the effective judgment modules",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap.Build(cmd.Context(), configFrom(cmd))
		if err != nil {
			return err
		}
		defer app.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tENABLED\tPRIORITY\tWEIGHT")
		for _, m := range app.Engine.EffectiveModules(cmd.Context()) {
			fmt.Fprintf(w, "%s\t%t\t%d\t%.3f\n", m.Name, m.Enabled, m.Priority, m.Weight)
		}
		return w.Flush()
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Run the feed for one user and print the pages",
	RunE:  runRecommend,
}

func runRecommend(cmd *cobra.Command, args []string) error {
	cfg := configFrom(cmd)
	flags := cmd.Flags()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	var user domain.UserContext
	if userID, _ := flags.GetString("user"); userID != "" {
		profile, ok, err := app.Profiles.GetProfile(ctx, userID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		if !ok {
			return fmt.Errorf("user %s not found", userID)
		}
		user = profile
	} else {
		user.Ceiling, _ = flags.GetInt("ceiling")
		user.Spent, _ = flags.GetInt("spent")
		user.Married, _ = flags.GetBool("married")
		user.Dependents, _ = flags.GetInt("dependents")
		user.Allergies, _ = flags.GetStringSlice("allergies")
	}
	categories, _ := flags.GetStringSlice("categories")
	pages, _ := flags.GetInt("pages")
	asJSON, _ := flags.GetBool("json")

	sessionID := ""
	for i := 0; i < max(pages, 1); i++ {
		page, err := app.Feed.NextPage(ctx, feed.NextPageRequest{
			SessionID:  sessionID,
			User:       user,
			Categories: categories,
		})
		if err != nil {
			return err
		}
		sessionID = page.SessionID

		if asJSON {
			out, err := json.MarshalIndent(page, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			continue
		}
		printPage(page)
	}
	return nil
}

func printPage(page domain.Page) {
	flags := []string{string(page.Reason)}
	if page.Degraded {
		flags = append(flags, "degraded")
	}
	fmt.Printf("page %d  session %s  threshold %.0f  candidates %d  [%s]\n",
		page.Number, page.SessionID, page.EffectiveThreshold, page.Candidates, strings.Join(flags, ","))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for i, r := range page.Recommendations {
		discovery := ""
		if r.Discovery {
			discovery = "*"
		}
		fmt.Fprintf(w, "%d\t%.1f%s\t¥%d\t%s\t%s\n", i+1, r.Score, discovery, r.Item.Price, r.Item.Name, r.Reason)
	}
	_ = w.Flush()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
