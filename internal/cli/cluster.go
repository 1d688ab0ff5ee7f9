package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justestif/go-mood-classifier/internal/clustering"
	"github.com/justestif/go-mood-classifier/internal/table"
)

func newClusterCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Groups the labeled tracks into two clusters with k-means",
		Long: `Runs k-means (k=2) on the standardized features of the labeled table,
keeping the restart with the lowest inertia, and writes one cluster
assignment per track. Labels are not used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cluster()
		},
	}

	kc := clustering.DefaultConfig()
	f := cmd.Flags()
	f.Uint64("seed", kc.Seed, "random seed for centroid initialisation")
	f.Int("restarts", kc.Restarts, "independent k-means runs")
	f.Int("max-iterations", kc.MaxIterations, "iterations per run")
	a.bind(f, "cluster.seed", "seed")
	a.bind(f, "cluster.restarts", "restarts")
	a.bind(f, "cluster.max_iterations", "max-iterations")
	return cmd
}

func (a *app) cluster() error {
	log := a.stage("cluster")

	in, err := a.readLabeled()
	if err != nil {
		return err
	}

	res, err := clustering.Cluster(in.table.Rows, in.schema, a.cfg.Clustering())
	if err != nil {
		return err
	}
	if err := table.WriteAssignments(a.cfg.Paths.Clusters, res.Assignments); err != nil {
		return fmt.Errorf("writing clusters: %w", err)
	}
	if err := a.writeMeta(a.cfg.Paths.Clusters, "cluster", in.schema, len(res.Assignments)); err != nil {
		return err
	}

	fmt.Fprint(a.out, clustering.FormatSummary(res, clustering.Profiles(res, in.schema)))
	log.Info("clustered tracks",
		"rows", len(res.Assignments),
		"sizes", res.Sizes,
		"inertia", res.Inertia,
		"output", a.cfg.Paths.Clusters,
	)
	return nil
}
