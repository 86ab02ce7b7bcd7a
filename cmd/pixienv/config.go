// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pixienv/pixienv/internal/config"

	"github.com/spf13/cobra"
)

// configKeys are the keys accepted by `config set`.
var configKeys = []string{
	"auto_reload",
	"ignored_environments",
	"offline_environment_name",
	"default_environment",
	"disable_config_change_prompt",
	"pixi_path",
	"ui.verbose",
	"ui.accessible",
	"ui.theme",
}

// newConfigCommand creates the `pixienv config` command tree.
func newConfigCommand(app *App, opts *globalOptions) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pixienv configuration",
		Long: `Manage pixienv configuration.

Configuration is stored in:
  - Linux: ~/.config/pixienv/config.cue
  - macOS: ~/Library/Application Support/pixienv/config.cue
  - Windows: %APPDATA%\pixienv\config.cue

A workspace may add .pixienv/config.cue, whose values override the user
file key by key. PIXIENV_* environment variables override both.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return report(cmd, opts, showConfig(cmd, app, opts))
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return report(cmd, opts, showConfigPath(cmd.OutOrStdout(), opts))
		},
	})

	var local bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a documented default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return report(cmd, opts, initConfig(cmd.OutOrStdout(), opts, local))
		},
	}
	initCmd.Flags().BoolVar(&local, "local", false, "write the workspace-local file instead")
	cfgCmd.AddCommand(initCmd)

	var setLocal bool
	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set a configuration value in the user file, or with --local in the workspace file.\n\nValid keys: " +
			strings.Join(configKeys, ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(cmd, opts, setConfigValue(cmd, opts, setLocal, args[0], args[1]))
		},
	}
	setCmd.Flags().BoolVar(&setLocal, "local", false, "write the workspace-local file instead")
	cfgCmd.AddCommand(setCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, app, opts)
			if err != nil {
				return report(cmd, opts, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func loadConfig(cmd *cobra.Command, app *App, opts *globalOptions) (*config.Config, error) {
	workspace, err := resolveWorkspace(opts.workspace)
	if err != nil {
		return nil, err
	}
	return app.deps.Config.Load(cmd.Context(), config.LoadOptions{
		ConfigFilePath: opts.configFile,
		WorkspaceDir:   workspace,
	})
}

func showConfig(cmd *cobra.Command, app *App, opts *globalOptions) error {
	cfg, err := loadConfig(cmd, app, opts)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	workspace, err := resolveWorkspace(opts.workspace)
	if err != nil {
		return err
	}
	sources, err := config.Sources(config.LoadOptions{ConfigFilePath: opts.configFile, WorkspaceDir: workspace})
	if err != nil {
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	value := func(v any) string { return valueStyle.Render(fmt.Sprint(v)) }

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if len(sources) == 0 {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config files"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(w, "%s:\n", keyStyle.Render("Config files"))
		for _, src := range sources {
			fmt.Fprintf(w, "  - %s\n", src)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("auto_reload"), value(cfg.AutoReload))
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("ignored_environments"))
	if len(cfg.IgnoredEnvironments) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, pattern := range cfg.IgnoredEnvironments {
		fmt.Fprintf(w, "  - %s\n", value(pattern))
	}
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("offline_environment_name"), value(cfg.OfflineEnvironmentName))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("default_environment"), orUnset(cfg.DefaultEnvironment))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("disable_config_change_prompt"), value(cfg.DisableConfigChangePrompt))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("pixi_path"), orUnset(cfg.PixiPath))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(w, "  verbose: %s\n", value(cfg.UI.Verbose))
	fmt.Fprintf(w, "  accessible: %s\n", value(cfg.UI.Accessible))
	fmt.Fprintf(w, "  theme: %s\n", value(cfg.UI.Theme))
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return SubtitleStyle.Render("(not set)")
	}
	return SuccessStyle.Render(s)
}

func showConfigPath(w io.Writer, opts *globalOptions) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	cfgPath, err := config.ConfigFilePath("")
	if err != nil {
		return err
	}
	statePath, err := config.StateFilePath("")
	if err != nil {
		return err
	}
	workspace, err := resolveWorkspace(opts.workspace)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(w, "Config file: %s\n", cfgPath)
	fmt.Fprintf(w, "Workspace config file: %s\n", config.LocalConfigFilePath(workspace))
	fmt.Fprintf(w, "State database: %s\n", statePath)
	return nil
}

// targetConfigFile is the file `config init` and `config set` write.
func targetConfigFile(opts *globalOptions, local bool) (string, error) {
	if local {
		workspace, err := resolveWorkspace(opts.workspace)
		if err != nil {
			return "", err
		}
		return config.LocalConfigFilePath(workspace), nil
	}
	if opts.configFile != "" {
		return opts.configFile, nil
	}
	return config.ConfigFilePath("")
}

func initConfig(w io.Writer, opts *globalOptions, local bool) error {
	path, err := targetConfigFile(opts, local)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		fmt.Fprintf(w, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
		return nil
	}
	if err := config.Save(path, config.DefaultConfig()); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	fmt.Fprintf(w, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

// setConfigValue updates one key of the target file only, so values from
// other sources are not copied into it.
func setConfigValue(cmd *cobra.Command, opts *globalOptions, local bool, key, value string) error {
	path, err := targetConfigFile(opts, local)
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if _, statErr := os.Stat(path); statErr == nil {
		if cfg, err = config.NewProvider().Load(cmd.Context(), config.LoadOptions{ConfigFilePath: path}); err != nil {
			return err
		}
	}

	if err := applyConfigValue(cfg, key, value); err != nil {
		return err
	}
	if valid, errs := cfg.IsValid(); !valid {
		return fmt.Errorf("invalid value for %s: %w", key, errs[0])
	}

	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Set %s = %s\n", SuccessStyle.Render("✓"), key, value)
	return nil
}

func applyConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "auto_reload":
		return parseBool(key, value, &cfg.AutoReload)
	case "ignored_environments":
		cfg.IgnoredEnvironments = splitList(value)
	case "offline_environment_name":
		cfg.OfflineEnvironmentName = value
	case "default_environment":
		cfg.DefaultEnvironment = value
	case "disable_config_change_prompt":
		return parseBool(key, value, &cfg.DisableConfigChangePrompt)
	case "pixi_path":
		cfg.PixiPath = value
	case "ui.verbose":
		return parseBool(key, value, &cfg.UI.Verbose)
	case "ui.accessible":
		return parseBool(key, value, &cfg.UI.Accessible)
	case "ui.theme":
		cfg.UI.Theme = config.Theme(value)
	default:
		return fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(configKeys, ", "))
	}
	return nil
}

func parseBool(key, value string, dst *bool) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q is not a boolean", key, value)
	}
	*dst = b
	return nil
}

func splitList(value string) []string {
	items := []string{}
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
