package commands

import (
	"fmt"

	"github.com/quillhq/scribe/internal/config"
	"github.com/quillhq/scribe/pkg/draft"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Scribe - draft autosave and recovery store",
	Long: `Scribe persists in-progress form content as keyed, versioned drafts
so work survives crashes, logouts and device switches.

The scribe CLI is an operator's window onto the draft store: list an
actor's resumable drafts, inspect one, and complete or discard records
out of band. Concurrent editing sessions coordinate purely through the
version stamp on each record - conflicting writes are surfaced, never
silently merged.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	// Silence Cobra's default error and usage printing; the printer package
	// already wrote the formatted error to stderr
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to scribe.yml")
}

// openStore loads the configuration and connects a draft store client.
// Callers own closing the returned client.
func openStore() (*draft.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	client, err := draft.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}

	return client, nil
}
