package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"kb-diagnosis-service/internal/export"
)

// NewAnalyticsCmd prints the teacher's analytics for an assignment.
func NewAnalyticsCmd(configPath *string) *cobra.Command {
	var teacherID, assignmentID string
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show per-learner analytics of an assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer d.close()
			report, err := d.analytics.AssignmentAnalytics(cmd.Context(), teacherID, assignmentID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&teacherID, "teacher", "", "owning teacher id")
	cmd.Flags().StringVar(&assignmentID, "assignment", "", "assignment id")
	_ = cmd.MarkFlagRequired("teacher")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}

// NewPeerStatsCmd prints how a learner ranks against peers.
func NewPeerStatsCmd(configPath *string) *cobra.Command {
	var flags learnerFlags
	cmd := &cobra.Command{
		Use:   "peer-stats",
		Short: "Compare a learner's best score with peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer d.close()
			stats, err := d.analytics.PeerStats(cmd.Context(), flags.userID, flags.assignmentID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
	flags.register(cmd)
	return cmd
}

// NewExportCmd writes assignment analytics to a CSV or JSON file.
func NewExportCmd(configPath *string) *cobra.Command {
	var teacherID, assignmentID, format, dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export assignment analytics as CSV or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			d, err := loadDeps(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer d.close()
			report, err := d.analytics.AssignmentAnalytics(cmd.Context(), teacherID, assignmentID)
			if err != nil {
				return err
			}
			file, err := export.Export(report, f, time.Now())
			if err != nil {
				return err
			}

			if dir == "" {
				dir = d.cfg.Export.Dir
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			path := filepath.Join(dir, file.Name)
			if err := os.WriteFile(path, file.Body, 0o644); err != nil {
				return err
			}
			d.log.Info("analytics exported",
				"assignment", assignmentID,
				"path", path,
				"contentType", file.ContentType,
				"learners", len(report.Learners))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
	cmd.Flags().StringVar(&teacherID, "teacher", "", "owning teacher id")
	cmd.Flags().StringVar(&assignmentID, "assignment", "", "assignment id")
	cmd.Flags().StringVar(&format, "format", "csv", "csv or json")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (defaults to export.dir)")
	_ = cmd.MarkFlagRequired("teacher")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}
