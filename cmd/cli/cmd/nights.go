package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"specplane/internal/config"
	"specplane/internal/exposure"
)

var nightsCmd = &cobra.Command{
	Use:   "nights",
	Short: "List nights that have exposure tables",
	Long: `Scan the exposure table directory and list every night that has a
persisted table, with its science exposure and tile counts.

With --activity, show per-night submission rollups from the dashd feed
instead, most recent night first.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if activity, _ := cmd.Flags().GetBool("activity"); activity {
			return runNightsActivity(cmd)
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		log := newLogger()

		loader := exposure.NewLoader(exposure.LoaderConfig{
			TableDir:     cfg.TableDir,
			CutoverNight: cfg.CutoverNight,
			MaxParallel:  cfg.LoadParallel,
		}, log)

		nights, err := loader.Nights()
		if err != nil {
			return err
		}
		if len(nights) == 0 {
			cmd.Printf("No exposure tables found under %s\n", cfg.TableDir)
			return nil
		}

		records, err := loader.Load(cmd.Context(), nights)
		if err != nil {
			return err
		}

		exposures := make(map[int64]int, len(nights))
		tiles := make(map[int64]map[int64]bool, len(nights))
		for _, r := range records {
			exposures[r.Night]++
			if tiles[r.Night] == nil {
				tiles[r.Night] = make(map[int64]bool)
			}
			tiles[r.Night][r.TileID] = true
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NIGHT\tEXPOSURES\tTILES")
		for _, n := range nights {
			fmt.Fprintf(w, "%d\t%d\t%d\n", n, exposures[n], len(tiles[n]))
		}
		w.Flush()

		cmd.Printf("\n%d night(s), %d science exposure(s)\n", len(nights), len(records))
		return nil
	},
}

func runNightsActivity(cmd *cobra.Command) error {
	client := NewFeedClient(viper.GetString("dashboard_url"))
	limit, _ := cmd.Flags().GetInt("limit")

	nights, err := client.GetNights(limit)
	if err != nil {
		return fmt.Errorf("fetch night activity: %w", err)
	}
	if len(nights) == 0 {
		cmd.Println("No submissions recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NIGHT\tSUBMITTED\tFAILED\tRESUBMITTED\tTOTAL\tLAST ACTIVITY")
	for _, n := range nights {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%s\n",
			n.Night, n.Submitted, n.Failed, n.Resubmitted, n.Total, relativeTime(n.LastActivity))
	}
	w.Flush()
	return nil
}

func init() {
	flags := nightsCmd.Flags()
	flags.Bool("activity", false, "show per-night submission rollups from the dashboard feed")
	flags.IntP("limit", "l", 0, "number of nights to fetch with --activity")

	rootCmd.AddCommand(nightsCmd)
}
