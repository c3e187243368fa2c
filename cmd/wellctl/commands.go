package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/utils"
)

func (st *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import an .xlsx or .csv export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			summary, err := st.c.Import.ImportFile(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func (st *cli) queryCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "query <kind>",
		Short: "List records of a kind in a time range, newest first",
		Long:  "Times without an offset are local wall clock. The default range is the last 24 hours.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			end, err := parseFlag("to", to, st.now())
			if err != nil {
				return err
			}
			start, err := parseFlag("from", from, end.Add(-24*time.Hour))
			if err != nil {
				return err
			}
			recs, err := st.c.LogsFor(kind).Range(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Range start, e.g. 2024-03-10 08:00")
	cmd.Flags().StringVar(&to, "to", "", "Range end, defaults to now")
	return cmd
}

func (st *cli) latestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest <kind>",
		Short: "Show the most recent record of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			rec, err := st.c.LogsFor(kind).Latest(cmd.Context())
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "no %s records\n", kind)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func (st *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <id>...",
		Short: "Delete records by id in one batch",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			if err := st.c.LogsFor(kind).DeleteMany(cmd.Context(), args[1:]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d %s records\n", len(args)-1, kind)
			return nil
		},
	}
}

func (st *cli) syncCmd() *cobra.Command {
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Pull data from a connected service",
	}
	sync.AddCommand(&cobra.Command{
		Use:   "fitbit",
		Short: "Sync intraday activity from the fitness tracker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if st.c.FitbitSync == nil {
				return fmt.Errorf("fitbit is not configured")
			}
			res, err := st.c.FitbitSync.Sync(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	})
	sync.AddCommand(&cobra.Command{
		Use:   "librelink",
		Short: "Upload new readings from the glucose cloud",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if st.c.LibreLink == nil {
				return fmt.Errorf("librelink is not configured")
			}
			res, err := st.c.LibreLink.Sync(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	})
	return sync
}

func (st *cli) trackingCmd() *cobra.Command {
	tracking := &cobra.Command{
		Use:   "tracking",
		Short: "Inspect and move sync watermarks",
	}
	tracking.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the owner's watermarks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := st.c.UserSvc.Tracking(cmd.Context(), st.ownerID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), t)
		},
	})

	var at string
	mark := &cobra.Command{
		Use:   "mark <field>",
		Short: "Set a watermark, e.g. last_tracked_cgm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseFlag("at", at, st.now())
			if err != nil {
				return err
			}
			if err := st.c.UserSvc.MarkTracking(cmd.Context(), st.ownerID, domain.TrackingField(args[0]), when); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s set to %s\n", args[0], utils.LocalDisplayString(when))
			return nil
		},
	}
	mark.Flags().StringVar(&at, "at", "", "Instant to record, defaults to now")
	tracking.AddCommand(mark)
	return tracking
}

func parseFlag(name, value string, def time.Time) (time.Time, error) {
	if value == "" {
		return def, nil
	}
	t, ok := utils.ParseFlexibleTimestamp(value)
	if !ok {
		return time.Time{}, fmt.Errorf("--%s: cannot parse %q as a time", name, value)
	}
	return t, nil
}
