package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"trivia-night-service/internal/infra/postgres"
	"trivia-night-service/internal/logger"
)

// newMigrateCmd applies database migrations.
func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Log.Level)
			return runMigrations(cmd.Context(), cfg.Postgres.URL, log)
		},
	}
}

func runMigrations(ctx context.Context, dsn string, log logger.Logger) error {
	applied, err := postgres.Migrate(ctx, dsn)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		log.Info("schema up to date")
		return nil
	}
	log.Info("migrations applied", "migrations", strings.Join(applied, ","))
	return nil
}

// newHashPasswordCmd prints a bcrypt hash for auth.passwordHash, reading
// the password from stdin so it stays out of shell history.
func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a host password from stdin and print its bcrypt hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return fmt.Errorf("password is empty")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return err
		},
	}
}

func newLogger(level string) *logger.SlogLogger {
	log := logger.New()
	log.SetLevel(logger.ParseLevel(level))
	return log
}
