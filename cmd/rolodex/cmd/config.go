package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/rolodex/configs"
	"github.com/Aman-CERP/rolodex/internal/config"
	"github.com/Aman-CERP/rolodex/internal/output"
)

func newConfigCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
		Long: `Manage rolodex configuration files.

Settings are layered, later sources winning:
  defaults < user config < project config (.rolodex.yaml) or --config < ROLODEX_* env`,
		Example: `  rolodex config init            # user config from the template
  rolodex config init --project  # .rolodex.yaml in the working directory
  rolodex config show            # effective settings
  rolodex config restore --list  # backups kept by init --force`,
	}
	c.AddCommand(newConfigInitCmd(), newConfigShowCmd(), newConfigPathCmd(), newConfigRestoreCmd())
	return c
}

// targetConfigPath is the file init and restore operate on.
func targetConfigPath(project bool) string {
	if project {
		return config.ProjectConfigName
	}
	return config.GetUserConfigPath()
}

func newConfigInitCmd() *cobra.Command {
	var force, project bool

	c := &cobra.Command{
		Use:   "init",
		Short: "Write the documented config template",
		Long: `Write the documented config template to the user config path, or to
.rolodex.yaml with --project. An existing file is left alone unless --force
is given; it is then backed up before being replaced.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runConfigInit(c, targetConfigPath(project), force)
		},
	}
	c.Flags().BoolVar(&force, "force", false, "Replace an existing file, keeping a backup")
	c.Flags().BoolVar(&project, "project", false, "Write .rolodex.yaml in the working directory")
	return c
}

func runConfigInit(c *cobra.Command, path string, force bool) error {
	out := output.New(c.OutOrStdout())

	if fileExists(path) && !force {
		out.Warning("Configuration already exists")
		out.Statusf("📁", "Location: %s", path)
		out.Status("💡", "Use --force to overwrite it (a backup is kept)")
		return nil
	}

	backup, err := config.WriteTemplate(path, configs.ConfigTemplate, force)
	if err != nil {
		return err
	}
	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	if backup != "" {
		out.Statusf("💾", "Backup: %s", backup)
	}
	out.Newline()
	out.Status("📋", "Edit the file, then check it with 'rolodex config show'")
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		asJSON bool
		source string
		write  string
	)

	c := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after all layers are merged, or the built-in
defaults with --source defaults. --write saves the same YAML to a file.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := configFromSource(source)
			if err != nil {
				return err
			}
			if write != "" {
				if err := cfg.WriteYAML(write); err != nil {
					return err
				}
				output.New(c.ErrOrStderr()).Statusf("💾", "Wrote %s", write)
			}
			if asJSON {
				return output.New(c.OutOrStdout()).JSON(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = c.OutOrStdout().Write(data)
			return err
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of YAML")
	c.Flags().StringVar(&source, "source", "merged", "Config source: merged or defaults")
	c.Flags().StringVar(&write, "write", "", "Also save the YAML to `file`")
	return c
}

func configFromSource(source string) (*config.Config, error) {
	switch source {
	case "merged":
		cfg, err := loadConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	case "defaults":
		return config.NewConfig(), nil
	default:
		return nil, fmt.Errorf("unknown source %q (use merged or defaults)", source)
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config path",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(c.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	var list, project bool

	c := &cobra.Command{
		Use:   "restore [backup]",
		Short: "Restore a config backup",
		Long: `Restore the newest backup of the user config, or of .rolodex.yaml with
--project. Pass a backup path to pick an older one; --list shows them. The
file being replaced is backed up first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			path := targetConfigPath(project)
			out := output.New(c.OutOrStdout())

			backups, err := config.ListBackups(path)
			if err != nil {
				return err
			}
			if list {
				for _, b := range backups {
					out.Status("", b)
				}
				return nil
			}

			var from string
			switch {
			case len(args) == 1:
				from = args[0]
			case len(backups) > 0:
				from = backups[0]
			default:
				return fmt.Errorf("no backups of %s", path)
			}
			if err := config.Restore(path, from); err != nil {
				return err
			}
			out.Success("Restored configuration")
			out.Statusf("📁", "From: %s", from)
			return nil
		},
	}
	c.Flags().BoolVar(&list, "list", false, "List backups, newest first")
	c.Flags().BoolVar(&project, "project", false, "Operate on .rolodex.yaml in the working directory")
	return c
}
