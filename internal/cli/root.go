package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"trivia-night-service/internal/config"
)

// options are the flag and environment overrides applied on top of the
// config file. Empty values leave the file setting alone.
type options struct {
	configPath   string
	port         string
	publicURL    string
	logLevel     string
	redisAddr    string
	postgresURL  string
	gameID       string
	quizDir      string
	hostPassword string
	jwtSecret    string
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&options{})
}

// newRootCmdWith binds flags and TRIVIA_* environment variables to opts.
func newRootCmdWith(opts *options) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TRIVIA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "trivia-night",
		Short:         "Live multiplayer trivia: host controller, player sockets and quiz editor",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&opts.configPath, "config", "config/config.yaml", "path to YAML config (env: TRIVIA_CONFIG)")
	fs.StringVar(&opts.port, "port", "", "port to listen on (env: TRIVIA_PORT)")
	fs.StringVar(&opts.publicURL, "public-url", "", "base URL players use to join (env: TRIVIA_PUBLIC_URL)")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (env: TRIVIA_LOG_LEVEL)")
	fs.StringVar(&opts.redisAddr, "redis-addr", "", "redis address for the live store (env: TRIVIA_REDIS_ADDR)")
	fs.StringVar(&opts.postgresURL, "postgres-url", "", "postgres DSN for the quiz store (env: TRIVIA_POSTGRES_URL)")
	fs.StringVar(&opts.gameID, "game", "", "live game id, namespaces the store keys (env: TRIVIA_GAME)")
	fs.StringVar(&opts.quizDir, "quiz-dir", "", "directory quiz files are loaded from (env: TRIVIA_QUIZ_DIR)")
	fs.StringVar(&opts.hostPassword, "host-password", "", "host password (env: TRIVIA_HOST_PASSWORD)")
	fs.StringVar(&opts.jwtSecret, "jwt-secret", "", "secret signing host session tokens (env: TRIVIA_JWT_SECRET)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(newStartCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newHashPasswordCmd())
	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

// loadConfig reads the config file and applies the overrides.
func loadConfig(opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	override(&cfg.Server.Port, opts.port)
	override(&cfg.Server.PublicURL, opts.publicURL)
	override(&cfg.Log.Level, opts.logLevel)
	override(&cfg.Redis.Addr, opts.redisAddr)
	override(&cfg.Postgres.URL, opts.postgresURL)
	override(&cfg.Game.ID, opts.gameID)
	override(&cfg.Quiz.Dir, opts.quizDir)
	override(&cfg.Auth.Password, opts.hostPassword)
	override(&cfg.Auth.JWTSecret, opts.jwtSecret)
	return cfg, nil
}

func override(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
