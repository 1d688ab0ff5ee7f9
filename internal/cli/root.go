// Package cli wires the pipeline stages into cobra commands.
package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/justestif/go-mood-classifier/internal/config"
	"github.com/justestif/go-mood-classifier/internal/logging"
)

// app holds what every command needs once flags and config are parsed.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	runID   uuid.UUID // shared by every output of one invocation
	logger  *slog.Logger
	out     io.Writer
	errOut  io.Writer
}

// stage returns the logger for one pipeline stage.
func (a *app) stage(name string) *slog.Logger {
	return a.logger.With("stage", name, "run_id", a.runID.String())
}

// NewRootCommand builds the command tree. Each call has its own viper
// instance so commands can be executed repeatedly in one process.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	config.SetDefaults(a.v)

	root := &cobra.Command{
		Use:   "mood-classifier",
		Short: "Classifies and clusters tracks as Happy or Sad from their audio",
		Long: `Extracts audio features from a track manifest, joins them with mood labels,
trains a random forest, clusters the tracks with k-means, and evaluates both
against the labels. Every stage reads and writes files, so stages can be run
one at a time or all together with "run".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			a.errOut = cmd.ErrOrStderr()
			return a.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./.mood-classifier.yaml, then $HOME)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("data-dir", "data", "root of the pipeline data directory")
	a.bind(pf, "log.level", "log-level")
	a.bind(pf, "log.format", "log-format")
	a.bind(pf, "paths.data_dir", "data-dir")

	root.AddCommand(
		newTracksCommand(a),
		newExtractCommand(a),
		newTransformCommand(a),
		newTrainCommand(a),
		newPredictCommand(a),
		newClusterCommand(a),
		newEvaluateCommand(a),
		newPublishCommand(a),
		newServeCommand(a),
		newRunCommand(a),
	)
	return root
}

// Execute runs the command tree with args.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// bind maps a flag onto a config key.
func (a *app) bind(fs *pflag.FlagSet, key, flag string) {
	if err := a.v.BindPFlag(key, fs.Lookup(flag)); err != nil {
		panic(err) // flag names are constants
	}
}

func (a *app) load() error {
	if err := config.BindEnv(a.v); err != nil {
		return err
	}
	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.runID = uuid.New()
	a.logger = logging.New(cfg.Log.Level, cfg.Log.Format, a.errOut)
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("using config file", "path", used)
	}
	return nil
}
