package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"specplane/internal/config"
	"specplane/internal/exposure"
	"specplane/internal/planner"
	"specplane/internal/selection"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the tile jobs a selection would produce",
	Long: `Resolve a selection of science exposures into per-tile job plans and
print them without writing scripts or submitting anything.

Example:
  spectl plan --tile 80605 --group pernight
  spectl plan --nights 20201214,20201215
  spectl plan --list /data/exposures_sv1.ecsv --group perexp`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		plans, err := buildPlans(cmd.Context(), cfg, criteriaFromFlags(cmd), newLogger())
		if err != nil {
			return err
		}

		printPlans(cmd, plans)
		return nil
	},
}

// addSelectionFlags registers the exposure selection flags shared by
// plan and submit.
func addSelectionFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Int64("tile", -1, "restrict to one tile id")
	flags.Int64Slice("nights", nil, "restrict to these nights (YYYYMMDD)")
	flags.Int64Slice("expids", nil, "restrict to these exposure ids")
	flags.StringP("group", "g", "cumulative", "grouping policy: cumulative, pernight, perexp, pernight-v0 or a custom label")
	flags.String("list", "", "external exposure list (csv, ecsv, fits or plain text)")
}

// criteriaFromFlags builds the selection criteria from a command's
// selection flags.
func criteriaFromFlags(cmd *cobra.Command) selection.Criteria {
	flags := cmd.Flags()
	tile, _ := flags.GetInt64("tile")
	nights, _ := flags.GetInt64Slice("nights")
	expIDs, _ := flags.GetInt64Slice("expids")
	group, _ := flags.GetString("group")
	list, _ := flags.GetString("list")

	return selection.Criteria{
		TileID:   tile,
		Nights:   nights,
		ExpIDs:   expIDs,
		ListPath: list,
		Group:    exposure.GroupKind(group),
	}
}

// buildPlans resolves the criteria against the exposure tables and
// partitions the result into job plans.
func buildPlans(ctx context.Context, cfg *config.Config, criteria selection.Criteria, log *slog.Logger) ([]planner.JobPlan, error) {
	loader := exposure.NewLoader(exposure.LoaderConfig{
		TableDir:     cfg.TableDir,
		CutoverNight: cfg.CutoverNight,
		MaxParallel:  cfg.LoadParallel,
	}, log)

	sel, err := selection.New(loader, log).Select(ctx, criteria)
	if err != nil {
		return nil, err
	}

	return planner.Plan(sel, criteria.Group, log)
}

func printPlans(cmd *cobra.Command, plans []planner.JobPlan) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TILE\tGROUP\tLABEL\tREFNIGHT\tEXPOSURES\tOUTPUT")
	for _, p := range plans {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n",
			p.TileID,
			p.Group,
			p.Label(),
			p.ReferenceNight,
			len(p.Exposures),
			p.OutputKey(),
		)
	}
	w.Flush()

	cmd.Printf("\n%d tile job(s) planned\n", len(plans))
}

func init() {
	addSelectionFlags(planCmd)
	rootCmd.AddCommand(planCmd)
}
