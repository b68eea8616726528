package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadreport/internal/report"
)

var (
	runEmail           string
	runMeetingDate     string
	runMeetingTime     string
	runMeetingPlatform string
	runProblemPitch    string
	runProject         string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate a report for a single email and wait for the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		o, st, err := initOrchestrator(ctx, "run")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		id, err := o.Submit(ctx, report.SubmitRequest{
			Email:           runEmail,
			MeetingDate:     runMeetingDate,
			MeetingTime:     runMeetingTime,
			MeetingPlatform: runMeetingPlatform,
			ProblemPitch:    runProblemPitch,
			Project:         runProject,
		})
		if err != nil {
			return eris.Wrap(err, "submit report")
		}

		zap.L().Info("report submitted", zap.String("report_id", id))

		res, err := o.Poll(ctx, id, pollOptions(cfg.Report))
		if err != nil {
			return eris.Wrap(err, "poll report")
		}

		zap.L().Info("report finished",
			zap.String("report_id", id),
			zap.String("status", string(res.Status)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	runCmd.Flags().StringVar(&runEmail, "email", "", "lead email address (required)")
	runCmd.Flags().StringVar(&runMeetingDate, "meeting-date", "", "scheduled meeting date")
	runCmd.Flags().StringVar(&runMeetingTime, "meeting-time", "", "scheduled meeting time")
	runCmd.Flags().StringVar(&runMeetingPlatform, "meeting-platform", "", "meeting platform (e.g. Zoom)")
	runCmd.Flags().StringVar(&runProblemPitch, "problem-pitch", "", "the problem this lead raised")
	runCmd.Flags().StringVar(&runProject, "project", "", "associated project name")
	_ = runCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(runCmd)
}
