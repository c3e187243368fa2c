package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vladimiradmaev/wellnest/internal/app"
	"github.com/vladimiradmaev/wellnest/internal/config"
	"github.com/vladimiradmaev/wellnest/internal/logger"
	"github.com/vladimiradmaev/wellnest/internal/owner"
)

type opener func(ctx context.Context, cfg *config.Config) (*app.Container, error)

func openContainer(ctx context.Context, cfg *config.Config) (*app.Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	settings := cfg.LoggerSettings()
	settings.OutputPath = "stdout"
	settings.Format = "text"
	settings.Level = logger.LevelWarn
	if err := logger.InitWithConfig(settings); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

// cli carries what every subcommand needs once the root has run
type cli struct {
	open    opener
	ownerID string
	c       *app.Container
}

func newRootCmd(open opener) *cobra.Command {
	st := &cli{open: open}

	root := &cobra.Command{
		Use:   "wellctl",
		Short: "Operate on WellNest records from the command line",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.PersistentFlags().StringVar(&st.ownerID, "owner", "", "Owner id to act for (for example tg12345)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(st.ownerID) == "" {
			return fmt.Errorf("--owner is required")
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		c, err := st.open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		st.c = c
		cmd.SetContext(owner.WithOwner(cmd.Context(), st.ownerID))
		return nil
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if st.c == nil {
			return nil
		}
		return st.c.Close()
	}

	root.AddCommand(
		st.importCmd(),
		st.queryCmd(),
		st.latestCmd(),
		st.deleteCmd(),
		st.syncCmd(),
		st.trackingCmd(),
	)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (st *cli) now() time.Time {
	return time.Now().UTC()
}
