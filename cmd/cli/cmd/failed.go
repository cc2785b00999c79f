package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"specplane/internal/config"
	"specplane/internal/registry"
	"specplane/internal/store"
	"specplane/internal/store/postgres"
)

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "Manage failed submissions",
	Long:  `Inspect submissions the execution backend rejected and hand their stored scripts back to it.`,
}

var failedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List failed submissions",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewFeedClient(viper.GetString("dashboard_url"))

		night, _ := cmd.Flags().GetInt64("night")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		subs, err := client.GetFeed(FeedFilter{
			Night:  night,
			Tile:   -1,
			State:  string(store.SubmissionStateFailed),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			cmd.Printf("Error fetching failed submissions: %s\n", err)
			os.Exit(1)
		}

		if len(subs) == 0 {
			if offset > 0 {
				cmd.Println("No more failed submissions found.")
			} else {
				cmd.Println("No failed submissions found.")
			}
			return
		}

		// Print table
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "LABEL\tBACKEND\tAGE\tERROR\tID")
		for _, s := range subs {
			errMsg := ""
			if s.Error != nil {
				// Truncate long error messages for the table view
				errMsg = *s.Error
				if len(errMsg) > 50 {
					errMsg = errMsg[:47] + "..."
				}
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				s.Label,
				s.Backend,
				relativeTime(s.CreatedAt),
				errMsg,
				s.ID,
			)
		}
		w.Flush()
	},
}

var failedRetryCmd = &cobra.Command{
	Use:   "retry [submission_id]",
	Short: "Re-submit a failed submission's stored script",
	Long: `Hand the stored batch script of a failed submission back to the
configured backend. The retry is recorded as a new submission linked to
the original, and the original is marked resubmitted.

Retries run the backend locally, so they need the registry database
and backend settings from specplane.yaml.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			cmd.Printf("Invalid submission id %q\n", args[0])
			return
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			cmd.Printf("Error loading config: %s\n", err)
			os.Exit(1)
		}
		if cfg.DatabaseURL == "" {
			cmd.Println("Submission registry not configured. Set database_url in specplane.yaml or SPECPLANE_DATABASE_URL")
			return
		}

		log := newLogger()
		ctx := cmd.Context()

		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			cmd.Printf("Error connecting to the registry: %s\n", err)
			os.Exit(1)
		}
		defer pg.Close()

		original, err := pg.GetSubmissionByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrSubmissionNotFound) {
				cmd.Printf("Submission %s not found\n", id)
				return
			}
			cmd.Printf("Error fetching submission: %s\n", err)
			os.Exit(1)
		}

		submitter, err := newSubmitter(cfg, log)
		if err != nil {
			cmd.Printf("Error: %s\n", err)
			os.Exit(1)
		}

		replacement, err := registry.Resubmit(ctx, pg, pg, original, submitter, cfg.Backend)
		if err != nil {
			cmd.Printf("Error retrying submission: %s\n", err)
			os.Exit(1)
		}

		if replacement.State == store.SubmissionStateFailed {
			cmd.Printf("✗ Retry was rejected by the backend: %s\n", *replacement.ErrorMessage)
			cmd.Printf("   Recorded as: %s\n", replacement.ID)
			os.Exit(1)
		}

		cmd.Printf("✓ Submission %s retried successfully.\n", id)
		cmd.Printf("   New submission: %s\n", replacement.ID)
		cmd.Printf("   Batch job: %s\n", *replacement.BatchJobID)
	},
}

func init() {
	rootCmd.AddCommand(failedCmd)
	failedCmd.AddCommand(failedListCmd)
	failedCmd.AddCommand(failedRetryCmd)

	failedListCmd.Flags().Int64("night", 0, "filter by reference night (YYYYMMDD)")
	failedListCmd.Flags().IntP("limit", "l", 20, "number of submissions to fetch")
	failedListCmd.Flags().IntP("offset", "o", 0, "offset for pagination")
}
