package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"lockdiag/internal/version"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "lockdiag",
		Short:         "lockdiag security subsystem diagnostics collector",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewCollectCmd())
	cmd.AddCommand(NewVersionCmd())

	cmd.SetVersionTemplate(fmt.Sprintf("%s (%s/%s)\n", version.Version, runtime.GOOS, runtime.GOARCH))
	cmd.Version = version.Version

	return cmd
}
