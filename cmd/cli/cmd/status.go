package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"specplane/pkg/api"
)

var statusCmd = &cobra.Command{
	Use:   "status [submission_id]",
	Short: "Show recorded submissions from the dashboard feed",
	Long: `Without arguments, list recent tile job submissions from the dashd
feed, newest first. With a submission id, show that submission in
detail.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewFeedClient(viper.GetString("dashboard_url"))

		if len(args) == 1 {
			sub, err := client.GetSubmission(args[0])
			if err != nil {
				cmd.Printf("Error fetching submission: %s\n", err)
				return
			}
			printSubmission(cmd, *sub)
			return
		}

		flags := cmd.Flags()
		var filter FeedFilter
		filter.Night, _ = flags.GetInt64("night")
		filter.Tile, _ = flags.GetInt64("tile")
		filter.State, _ = flags.GetString("state")
		filter.Limit, _ = flags.GetInt("limit")
		filter.Offset, _ = flags.GetInt("offset")

		subs, err := client.GetFeed(filter)
		if err != nil {
			cmd.Printf("Error fetching feed: %s\n", err)
			return
		}

		if len(subs) == 0 {
			if filter.Offset > 0 {
				cmd.Println("No more submissions found.")
			} else {
				cmd.Println("No submissions found.")
			}
			return
		}

		printFeed(cmd, subs)
	},
}

func printFeed(cmd *cobra.Command, subs []api.SubmissionResponse) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "LABEL\tGROUP\tBACKEND\tJOB\tSTATE\tAGE\tID")
	for _, s := range subs {
		jobID := "-"
		if s.BatchJobID != nil {
			jobID = *s.BatchJobID
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Label,
			s.Group,
			s.Backend,
			jobID,
			s.State,
			relativeTime(s.CreatedAt),
			s.ID,
		)
	}
	w.Flush()
}

func printSubmission(cmd *cobra.Command, sub api.SubmissionResponse) {
	// Header with state icon
	icon := stateIcon(sub.State)
	cmd.Printf("%s %sSubmission Details%s\n", icon, colorBold, colorReset)
	cmd.Println("──────────────────────────────")

	cmd.Printf("%sID:%s          %s\n", colorDim, colorReset, sub.ID)
	cmd.Printf("%sRun:%s         %s\n", colorDim, colorReset, sub.RunID)
	cmd.Printf("%sTile:%s        %d\n", colorDim, colorReset, sub.TileID)
	cmd.Printf("%sNight:%s       %d\n", colorDim, colorReset, sub.Night)
	cmd.Printf("%sGroup:%s       %s\n", colorDim, colorReset, sub.Group)
	cmd.Printf("%sLabel:%s       %s\n", colorDim, colorReset, sub.Label)
	cmd.Printf("%sOutput:%s      %s\n", colorDim, colorReset, sub.OutputKey)
	cmd.Printf("%sBackend:%s     %s\n", colorDim, colorReset, sub.Backend)

	// State with icon
	cmd.Printf("%sState:%s       %s\n", colorDim, colorReset, colorizeState(sub.State))

	if sub.BatchJobID != nil {
		cmd.Printf("%sBatch Job:%s   %s\n", colorDim, colorReset, *sub.BatchJobID)
	} else {
		cmd.Printf("%sBatch Job:%s   -\n", colorDim, colorReset)
	}

	// Error (if present)
	if sub.Error != nil {
		cmd.Printf("%sError:%s       %s%s%s\n", colorDim, colorReset, colorRed, *sub.Error, colorReset)
	}

	// The failed submission this row replaced, when it is a retry
	if sub.ResubmittedFrom != nil {
		cmd.Printf("%sReplaces:%s    %s\n", colorDim, colorReset, *sub.ResubmittedFrom)
	}

	cmd.Printf("%sSubmitted:%s   %s\n", colorDim, colorReset, formatTimeWithRelative(sub.CreatedAt))
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func stateIcon(state string) string {
	switch state {
	case "submitted":
		return colorGreen + "✓" + colorReset
	case "failed":
		return colorRed + "✗" + colorReset
	case "resubmitted":
		return colorYellow + "↻" + colorReset
	default:
		return "•"
	}
}

func colorizeState(state string) string {
	icon := stateIcon(state)
	switch state {
	case "submitted":
		return icon + " " + colorGreen + state + colorReset
	case "failed":
		return icon + " " + colorRed + state + colorReset
	case "resubmitted":
		return icon + " " + colorYellow + state + colorReset
	default:
		return state
	}
}

func formatTimeWithRelative(t time.Time) string {
	relative := relativeTime(t)
	return fmt.Sprintf("%s %s(%s ago)%s", t.Format("Mon, 02 Jan 2006 15:04:05 MST"), colorDim, relative, colorReset)
}

func relativeTime(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	} else {
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}

func init() {
	flags := statusCmd.Flags()
	flags.Int64("night", 0, "filter by reference night (YYYYMMDD)")
	flags.Int64("tile", -1, "filter by tile id")
	flags.String("state", "", "filter by state: submitted, failed or resubmitted")
	flags.IntP("limit", "l", 20, "number of submissions to fetch")
	flags.IntP("offset", "o", 0, "offset for pagination")

	rootCmd.AddCommand(statusCmd)
}
