package cli

import (
	"github.com/spf13/cobra"

	"kb-diagnosis-service/internal/diagnosis"
	"kb-diagnosis-service/internal/domain"
)

type learnerFlags struct {
	userID       string
	assignmentID string
}

func (f *learnerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.userID, "user", "", "learner user id")
	cmd.Flags().StringVar(&f.assignmentID, "assignment", "", "assignment id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("assignment")
}

// learnerMapFile is the YAML shape accepted by the draft command.
type learnerMapFile struct {
	Nodes []domain.Node `yaml:"nodes"`
	Edges []domain.Edge `yaml:"edges"`
}

// NewDraftCmd stores nodes and edges from a YAML file as the learner's draft.
func NewDraftCmd(configPath *string) *cobra.Command {
	var (
		flags learnerFlags
		file  string
	)
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Save a learner map draft from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var m learnerMapFile
			if err := readYAML(file, &m); err != nil {
				return err
			}
			d, err := loadDeps(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer d.close()
			lm, err := d.diagnoses.SaveDraft(cmd.Context(), flags.userID, flags.assignmentID, m.Nodes, m.Edges)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), lm)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&file, "file", "", "path to YAML learner map")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

type submitOutput struct {
	DiagnosisID string                 `json:"diagnosisId"`
	Result      domain.DiagnosisResult `json:"result"`
	Edges       []classifiedOutput     `json:"edges"`
	Counts      diagnosis.Counts       `json:"counts"`
}

type classifiedOutput struct {
	ID     string         `json:"id"`
	Kind   diagnosis.Kind `json:"kind"`
	Source string         `json:"source"`
	Target string         `json:"target"`
}

// NewSubmitCmd diagnoses and submits the learner's current draft.
func NewSubmitCmd(configPath *string) *cobra.Command {
	var flags learnerFlags
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Diagnose and submit a learner map",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer d.close()
			res, err := d.diagnoses.Submit(cmd.Context(), flags.userID, flags.assignmentID)
			if err != nil {
				return err
			}
			out := submitOutput{
				DiagnosisID: res.DiagnosisID,
				Result:      res.Result,
				Edges:       make([]classifiedOutput, 0, len(res.Classification)),
				Counts:      diagnosis.Count(res.Classification),
			}
			for _, ce := range res.Classification {
				key := ce.Key()
				out.Edges = append(out.Edges, classifiedOutput{ID: ce.ID(), Kind: ce.Kind, Source: key.Source, Target: key.Target})
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	flags.register(cmd)
	return cmd
}

// NewNewAttemptCmd reopens a submitted learner map as the next attempt.
func NewNewAttemptCmd(configPath *string) *cobra.Command {
	var flags learnerFlags
	cmd := &cobra.Command{
		Use:   "new-attempt",
		Short: "Start a new attempt on a submitted learner map",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer d.close()
			lm, err := d.diagnoses.StartNewAttempt(cmd.Context(), flags.userID, flags.assignmentID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), lm)
		},
	}
	flags.register(cmd)
	return cmd
}

// NewControlTextCmd stores the learner's free-text explanation.
func NewControlTextCmd(configPath *string) *cobra.Command {
	var (
		flags learnerFlags
		text  string
	)
	cmd := &cobra.Command{
		Use:   "control-text",
		Short: "Save the control text of a learner map draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer d.close()
			lm, err := d.diagnoses.SubmitControlText(cmd.Context(), flags.userID, flags.assignmentID, text)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), lm)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&text, "text", "", "control text")
	return cmd
}

// NewHistoryCmd lists the learner's diagnoses across attempts.
func NewHistoryCmd(configPath *string) *cobra.Command {
	var flags learnerFlags
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List diagnoses of every attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer d.close()
			diags, err := d.diagnoses.History(cmd.Context(), flags.userID, flags.assignmentID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), diags)
		},
	}
	flags.register(cmd)
	return cmd
}
