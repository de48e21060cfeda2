// Package main provides the nenavi CLI entry point.
// nenavi is the command-line interface for the NE Navi meeting minutes system.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nb75km/nenavi-cli/cmd"
	"github.com/nb75km/nenavi-cli/config"
	"github.com/nb75km/nenavi-cli/pkg/buildinfo"
	"github.com/nb75km/nenavi-cli/pkg/logging"
)

// Global flags and state.
var (
	serverURL    string
	timeout      time.Duration
	outputFormat string
	debug        bool

	// cfg holds the loaded configuration.
	cfg *config.CLIConfig

	// deps is shared by all command groups.
	deps = cmd.DefaultDeps()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nenavi",
	Short: "NE Navi CLI - meeting minutes from the terminal",
	Long: `nenavi is the command-line interface for the NE Navi meeting minutes system.

NE Navi transcribes uploaded meeting recordings, drafts minutes from the
transcript, and keeps every edit as an append-only version history you
can diff, roll back, and export.

COMMON WORKFLOWS:
  Sign in:           nenavi auth login
  Upload and wait:   nenavi upload meeting.mp3 --wait
  Browse:            nenavi transcript list  |  nenavi watch
  Minutes:           nenavi minutes versions 42  →  nenavi minutes show <version-id>
  Edit by chat:      nenavi chat minutes 42
  Compare and save:  nenavi minutes diff 42  →  nenavi minutes export <version-id>

DISCOVERY:
  nenavi <command> --help    Subcommands, flags, and examples for any command
  nenavi health              Backend service health
  nenavi config show         Current configuration`,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		// Skip initialization for commands that don't need it.
		if c.Name() == "version" || c.Name() == "help" || c.Name() == "completion" {
			return nil
		}

		// Load configuration.
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		// Override with command-line flags.
		if serverURL != "" {
			cfg.ServerURL = serverURL
		}
		if timeout != 0 {
			cfg.Timeout = timeout
		}
		if outputFormat != "" {
			format := config.OutputFormat(outputFormat)
			if !format.IsValid() {
				return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", outputFormat)
			}
			cfg.OutputFormat = format
		}
		if debug {
			cfg.Debug = true
		}

		deps.Config = cfg
		if cfg.Debug {
			deps.Logger = logging.NewLogger(&logging.Config{Level: logging.LevelDebug})
		}

		return nil
	},
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of the nenavi CLI.

Examples:
  nenavi version`,
	RunE: func(c *cobra.Command, args []string) error {
		info := buildinfo.Get()
		out := c.OutOrStdout()
		fmt.Fprintf(out, "nenavi version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `View and modify the nenavi CLI configuration settings.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current CLI configuration values.`,
	RunE: func(c *cobra.Command, args []string) error {
		if cfg == nil {
			var err error
			cfg, err = config.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
		}

		configPath, _ := config.ConfigPath()

		out := c.OutOrStdout()
		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  Config file:     %s\n", configPath)
		fmt.Fprintf(out, "  Server URL:      %s\n", cfg.ServerURL)
		fmt.Fprintf(out, "  Timeout:         %s\n", cfg.Timeout)
		fmt.Fprintf(out, "  Poll interval:   %s\n", cfg.PollInterval)
		fmt.Fprintf(out, "  Health interval: %s\n", cfg.HealthInterval)
		fmt.Fprintf(out, "  Model:           %s\n", cfg.Model)
		fmt.Fprintf(out, "  Output format:   %s\n", cfg.OutputFormat)
		fmt.Fprintf(out, "  Debug:           %t\n", cfg.Debug)
		return nil
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(c *cobra.Command, args []string) error {
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}

		out := c.OutOrStdout()
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(out, "Use 'nenavi config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		fmt.Fprintln(out, "\nDefault settings:")
		fmt.Fprintf(out, "  Server URL:    %s\n", defaultCfg.ServerURL)
		fmt.Fprintf(out, "  Timeout:       %s\n", defaultCfg.Timeout)
		fmt.Fprintf(out, "  Output format: %s\n", defaultCfg.OutputFormat)
		return nil
	},
}

// configSetCmd sets a configuration value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Available keys:
  server_url       - Backend base URL
  timeout          - Request timeout (e.g., 30s, 1m)
  poll_interval    - Job polling interval (e.g., 3s)
  health_interval  - Health re-check interval (e.g., 30s)
  model            - Default model for drafting and AI edits
  output_format    - Default output format (text, json, yaml)
  debug            - Enable debug logging (true/false)

Examples:
  nenavi config set server_url http://localhost:8000
  nenavi config set timeout 1m
  nenavi config set model gpt-4o
  nenavi config set output_format json`,
	Args: cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		currentCfg, err := config.LoadConfig()
		if err != nil {
			currentCfg = config.DefaultConfig()
		}

		switch key {
		case "server_url":
			currentCfg.ServerURL = value
		case "timeout":
			duration, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid timeout value: %w", err)
			}
			currentCfg.Timeout = duration
		case "poll_interval":
			duration, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid poll_interval value: %w", err)
			}
			currentCfg.PollInterval = duration
		case "health_interval":
			duration, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid health_interval value: %w", err)
			}
			currentCfg.HealthInterval = duration
		case "model":
			currentCfg.Model = value
		case "output_format":
			format := config.OutputFormat(value)
			if !format.IsValid() {
				return fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", value)
			}
			currentCfg.OutputFormat = format
		case "debug":
			switch value {
			case "true", "1":
				currentCfg.Debug = true
			case "false", "0":
				currentCfg.Debug = false
			default:
				return fmt.Errorf("invalid debug value: %s (must be true or false)", value)
			}
		default:
			return fmt.Errorf("unknown configuration key: %s", key)
		}

		if err := config.SaveConfig(currentCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(c.OutOrStdout(), "Set %s = %s\n", key, value)
		return nil
	},
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for nenavi.

To load completions:

Bash:
  $ source <(nenavi completion bash)

Zsh:
  $ nenavi completion zsh > "${fpath[1]}/_nenavi"

Fish:
  $ nenavi completion fish | source

PowerShell:
  PS> nenavi completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(c *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "backend base URL (e.g., http://localhost:8000)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "request timeout (e.g., 30s, 1m)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add command groups for organized help output.
	rootCmd.AddGroup(
		&cobra.Group{ID: "content", Title: "Transcripts & Minutes:"},
		&cobra.Group{ID: "chat", Title: "Chat:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	// Transcripts & Minutes
	uploadCmd := cmd.NewUploadCommand(deps)
	uploadCmd.GroupID = "content"
	rootCmd.AddCommand(uploadCmd)

	transcriptCmd := cmd.NewTranscriptCommand(deps)
	transcriptCmd.GroupID = "content"
	rootCmd.AddCommand(transcriptCmd)

	minutesCmd := cmd.NewMinutesCommand(deps)
	minutesCmd.GroupID = "content"
	rootCmd.AddCommand(minutesCmd)

	// Chat
	chatCmd := cmd.NewChatCommand(deps)
	chatCmd.GroupID = "chat"
	rootCmd.AddCommand(chatCmd)

	// Operations
	watchCmd := cmd.NewWatchCommand(deps)
	watchCmd.GroupID = "ops"
	rootCmd.AddCommand(watchCmd)

	healthCmd := cmd.NewHealthCommand(deps)
	healthCmd.GroupID = "ops"
	rootCmd.AddCommand(healthCmd)

	// Setup
	authCmd := cmd.NewAuthCommand(deps)
	authCmd.GroupID = "setup"
	rootCmd.AddCommand(authCmd)

	configCmd.GroupID = "setup"
	rootCmd.AddCommand(configCmd)

	completionCmd.GroupID = "setup"
	rootCmd.AddCommand(completionCmd)

	versionCmd.GroupID = "setup"
	rootCmd.AddCommand(versionCmd)

	// Config subcommands.
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
}

func main() {
	// Set up signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
