package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justestif/go-mood-classifier/internal/domain"
)

func newRunCommand(a *app) *cobra.Command {
	var skipExtract bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs extract, transform, train, cluster and evaluate in order",
		Long: `Runs the whole pipeline, stopping at the first stage that fails. Each
stage reads the files the previous one wrote, so a failed run can be
resumed with the individual commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := a.stage("run")
			// cluster would reject the unstandardized schema after train has
			// already replaced the model and predictions.
			if !a.cfg.Transform.Standardize {
				return &domain.ConfigurationError{
					Field:  "transform.standardize",
					Reason: "clustering needs standardized features",
				}
			}
			steps := []struct {
				name string
				fn   func() error
			}{
				{"extract", func() error { return a.extract(cmd.Context()) }},
				{"transform", a.transform},
				{"train", a.train},
				{"cluster", a.cluster},
				{"evaluate", a.evaluate},
			}
			if skipExtract {
				steps = steps[1:]
			}
			for _, s := range steps {
				log.Debug("starting stage", "name", s.name)
				if err := s.fn(); err != nil {
					return fmt.Errorf("%s: %w", s.name, err)
				}
			}
			log.Info("pipeline finished", "report", a.cfg.Paths.Report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipExtract, "skip-extract", false, "start from the existing features table")
	return cmd
}
