package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JamesPrial/liferpg/internal/devdb"
)

// devdbCmd runs a throwaway PostgreSQL container until interrupted.
func devdbCmd(c *cli) *cobra.Command {
	var opts devdb.Options
	cmd := &cobra.Command{
		Use:   "devdb",
		Short: "Run a development PostgreSQL container until Ctrl-C",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !devdb.DockerAvailable() {
				return fmt.Errorf("docker is not available")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := devdb.NewManager()
			connStr, err := m.Start(ctx, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "PostgreSQL is up.\nConnection string: %s\n\n", connStr)
			fmt.Fprintf(out, "  export LIFERPG_STORAGE_BACKEND=postgres\n  export LIFERPG_POSTGRES_URL='%s'\n\nPress Ctrl-C to stop.\n", connStr)

			<-ctx.Done()
			if err := m.Stop(context.Background()); err != nil {
				return fmt.Errorf("stop container: %w", err)
			}
			c.logger.Printf("postgres container stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Password, "password", devdb.DefaultPassword, "PostgreSQL password")
	cmd.Flags().StringVar(&opts.Database, "database", devdb.DefaultDatabase, "Database name")
	cmd.Flags().StringVar(&opts.Image, "image", devdb.DefaultImage, "Docker image")
	return cmd
}
