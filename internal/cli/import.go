package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"trivia-night-service/internal/app"
	"trivia-night-service/internal/domain"
	"trivia-night-service/internal/infra/postgres"
)

// newImportCmd stores quiz files in the Postgres quiz store.
func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import quiz JSON files into the quiz store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return &domain.ConfigurationError{Component: "postgres", Reason: "import needs a persistent quiz store"}
			}
			log := newLogger(cfg.Log.Level)
			ctx := cmd.Context()

			if err := runMigrations(ctx, cfg.Postgres.URL, log); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			editor := app.NewEditorService(postgres.NewQuizStore(pool), nil, log)
			for _, path := range args {
				raw, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				quiz, err := editor.Import(ctx, filepath.Base(path), raw)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d items\n", quiz.ID, quiz.Title, len(quiz.Items))
			}
			return nil
		},
	}
}
