package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"markalloc/internal/bootstrap"
	"markalloc/internal/bootstrap/logging"
	"markalloc/internal/errs"
	"markalloc/internal/usecase/allocation"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load cycles, subjects, examiners, history, quotas and scores from a TOML dataset",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		path, _ := cmd.Flags().GetString("file")
		f, err := os.Open(path)
		if err != nil {
			return errs.Wrapf(err, "open dataset %s", path)
		}
		defer f.Close()

		ds, err := allocation.ParseDataset(f)
		if err != nil {
			logging.Error(ctx, "parse dataset failed", slog.String("file", path), slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "parse dataset")
		}

		summary, err := svc.ImportDataset(ctx, ds)
		if err != nil {
			logging.Error(ctx, "import dataset failed", slog.String("file", path), slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "import dataset")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(),
			"imported cycles=%d subjects=%d examiners=%d eligibility=%d history=%d quotas=%d scores=%d\n",
			summary.Cycles, summary.Subjects, summary.Examiners, summary.Eligibility,
			summary.History, summary.Quotas, summary.Scores); err != nil {
			return errs.Wrap(err, "write import output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("file", "", "Path to the TOML dataset")
	_ = importCmd.MarkFlagRequired("file")
}
