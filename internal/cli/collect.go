package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lockdiag/internal/profile"
	"lockdiag/internal/run"
	"lockdiag/internal/winutil"
)

// ErrNotElevated is mapped to exit code 2 by main; the check happens before
// any collection I/O.
var ErrNotElevated = errors.New("administrator privileges are required")

func NewCollectCmd() *cobra.Command {
	var outputPath string
	var useTemp bool
	var zipOutput bool
	var mdm bool
	var verbose bool
	var profilePath string
	var family string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect security subsystem diagnostic logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !winutil.IsElevated() {
				return ErrNotElevated
			}

			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			prof := profile.Default()
			if profilePath != "" {
				prof, err = profile.Load(profilePath)
				if err != nil {
					return err
				}
			}
			if family != "" {
				prof.Family = family
			}

			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			res, err := run.Run(ctx, run.Options{
				Profile:  prof,
				BasePath: outputPath,
				UseTemp:  useTemp,
				Zip:      zipOutput,
				MDM:      mdm,
				Console:  cmd.OutOrStdout(),
				Logger:   logger,
				Collab:   run.DefaultCollaborators(),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "run=%s output=%s steps=%d succeeded=%d\n",
				res.RunID, res.OutputDir, len(res.Outcomes), res.Succeeded)
			return nil
		},
	}

	cmd.Flags().StringVar(&outputPath, "output-path", "", "Base directory for the run (default: user documents directory)")
	cmd.Flags().BoolVar(&useTemp, "use-temp", false, "Use the platform temp directory as the base")
	cmd.Flags().BoolVar(&zipOutput, "zip", false, "Package the completed output directory into a zip archive")
	cmd.Flags().BoolVar(&mdm, "mdm", false, "Also generate the MDM diagnostic report and extract matching policy areas")
	cmd.Flags().StringVar(&profilePath, "profile", "", "YAML collection profile overriding the built-in catalog")
	cmd.Flags().StringVar(&family, "family", "", "Artifact family label (default: BitLocker)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall collection timeout (0 = none)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	return config.Build()
}
