package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/billora/pkg/observability"
)

// Actor is recorded as the author of changes made from the command line.
const Actor = "cli"

var (
	// LogLevel backs the CLI logger so --verbose can lower it after startup.
	LogLevel = new(slog.LevelVar)

	verbose bool
	logger  = slog.Default()
)

type commandTimerKey struct{}

var rootCmd = &cobra.Command{
	Use:   "billora",
	Short: "Billora - subscription billing back office",
	Long: `Billora renews subscriptions, issues invoices and tracks delinquent
accounts. The daily renewal batch normally runs inside the worker; these
commands run the same operations on demand.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			LogLevel.Set(slog.LevelDebug)
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = observability.WithActorID(observability.WithCorrelationID(ctx, ""), Actor)
		timer := observability.StartTimer(cmd.CommandPath()).WithLogger(logger)
		cmd.SetContext(context.WithValue(ctx, commandTimerKey{}, timer))
		logger.DebugContext(ctx, "command start", "command", cmd.CommandPath())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if timer, ok := cmd.Context().Value(commandTimerKey{}).(*observability.Timer); ok {
			timer.Stop()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// Execute runs the command tree. Errors are returned rather than printed so
// the caller can release resources before exiting.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}
