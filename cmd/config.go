package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const configTemplate = `# taskora configuration
# Values can also be set via TASKORA_* environment variables,
# e.g. TASKORA_DB_PATH, TASKORA_ANTHROPIC_API_KEY.

# Where the sqlite database lives.
#db_path: ~/.config/taskora/taskora.db

# Identity used by the CLI to resolve "me" and record issue creators.
# Must match a user's subject (taskora user add --subject ...).
identity:
  subject: ""

anthropic:
  # API key for triage and query translation. Falls back to the
  # ANTHROPIC_API_KEY environment variable.
  api_key: ""
  model: "claude-haiku-4-5-20251001"

serve:
  port: 8880

assign:
  # Wall-clock time (HH:MM, local) of the daily auto-assignment sweep.
  daily_at: "03:00"
`

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE:  configInitRun,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  configShowRun,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE:  configPathRun,
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func configFilePath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".config", "taskora", "config.yaml"), nil
}

func configInitRun(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	path, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	ui.Success("Wrote %s", path)
	return nil
}

func configShowRun(cmd *cobra.Command, args []string) error {
	settings := viper.AllSettings()

	encoded, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if used := viper.ConfigFileUsed(); used != "" {
		ui.Info("Config file: %s", used)
	} else {
		ui.Info("No config file found, showing defaults")
	}
	fmt.Print(string(encoded))
	return nil
}

func configPathRun(cmd *cobra.Command, args []string) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
