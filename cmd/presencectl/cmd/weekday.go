package cmd

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"presence/internal/presence"
)

type weekdayRow struct {
	Weekday string  `json:"weekday"`
	Mean    float64 `json:"mean"`
	Total   int     `json:"total"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

type weekdayReport struct {
	UserID int          `json:"user_id"`
	Known  bool         `json:"known"`
	Days   []weekdayRow `json:"days"`
}

var weekdayCmd = &cobra.Command{
	Use:   "weekday <user_id>",
	Short: "Print per-weekday presence for one user as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fail("user_id must be an integer", err)
		}
		tl, known, err := newService().Timeline(cmd.Context(), id)
		if err != nil {
			return fail("load attendance", err)
		}

		report := weekdayReport{UserID: id, Known: known, Days: []weekdayRow{}}
		if known {
			buckets := presence.GroupByWeekday(tl)
			means := presence.MeanByWeekday(buckets)
			totals := presence.TotalByWeekday(buckets)
			spans := presence.MeanStartEnd(presence.StartEndPresence(tl))
			for d := 0; d < presence.DaysInWeek; d++ {
				report.Days = append(report.Days, weekdayRow{
					Weekday: presence.WeekdayAbbr[d],
					Mean:    means[d],
					Total:   totals[d],
					Start:   spans[d].Start,
					End:     spans[d].End,
				})
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(weekdayCmd)
}
