package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"

	"github.com/dotcommander/kbagent/internal/config"
	"github.com/dotcommander/kbagent/internal/errs"
	"github.com/dotcommander/kbagent/internal/present"
)

func newConfigCmd(rt *runtime) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage settings",
		RunE: func(_ *cobra.Command, _ []string) error {
			// Allow opening settings even when config parsing failed.
			return editSettings(rt)
		},
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Open settings in $EDITOR",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return editSettings(rt)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset settings to defaults",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Allow reset even when config parsing failed.
			return resetSettings(rt)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "dirs",
		Short: "Print the settings file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printDirs(cmd.OutOrStdout(), &rt.cfg)
			return nil
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			printEffective(cmd.OutOrStdout(), rt.effective())
			return nil
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Fill in the AWS resource IDs interactively",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			if !present.IsInputTTY() {
				return errs.Error{
					Reason: "config init needs a terminal.",
					Err:    errs.UserErrorf("Use %s instead.", present.StderrStyles().InlineCode.Render("kbagent config edit")),
				}
			}
			return initSettings(rt)
		},
	})

	return configCmd
}

func editSettings(rt *runtime) error {
	cfg := &rt.cfg
	if err := config.WriteConfigFile(cfg.SettingsPath); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	appName := filepath.Base(os.Args[0])
	c, err := editor.Cmd(appName, cfg.SettingsPath)
	if err != nil {
		return errs.Wrap(err, "Could not edit your settings file.")
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return errs.Wrapf(err, "Missing %s.", present.StderrStyles().InlineCode.Render("$EDITOR"))
	}

	if !cfg.Quiet {
		_, _ = fmt.Fprintln(rt.stderr, "Wrote config file to:", cfg.SettingsPath)
	}
	return nil
}

func resetSettings(rt *runtime) error {
	cfg := &rt.cfg
	_, err := os.Stat(cfg.SettingsPath)
	if err != nil {
		return errs.Wrap(err, "Couldn't read config file.")
	}
	inputFile, err := os.Open(cfg.SettingsPath)
	if err != nil {
		return errs.Wrap(err, "Couldn't open config file.")
	}
	defer inputFile.Close() //nolint:errcheck

	outputFile, err := os.Create(cfg.SettingsPath + ".bak")
	if err != nil {
		return errs.Wrap(err, "Couldn't backup config file.")
	}
	defer outputFile.Close() //nolint:errcheck

	if _, err := io.Copy(outputFile, inputFile); err != nil {
		return errs.Wrap(err, "Couldn't write config file.")
	}
	if err := os.Remove(cfg.SettingsPath); err != nil {
		return errs.Wrap(err, "Couldn't remove config file.")
	}
	if err := config.WriteConfigFile(cfg.SettingsPath); err != nil {
		return errs.Wrap(err, "Couldn't write new config file.")
	}

	if !cfg.Quiet {
		_, _ = fmt.Fprintln(rt.stderr, "\nSettings restored to defaults!")
		_, _ = fmt.Fprintf(
			rt.stderr,
			"\n  %s %s\n\n",
			present.StderrStyles().Comment.Render("Your old settings have been saved to:"),
			present.StderrStyles().Link.Render(cfg.SettingsPath+".bak"),
		)
	}
	return nil
}

func printDirs(w io.Writer, cfg *config.Config) {
	_, _ = fmt.Fprintf(w, "Configuration: %s\n", filepath.Dir(cfg.SettingsPath))
	//nolint:mnd
	_, _ = fmt.Fprintf(w, "%*sSettings: %s\n", 5, " ", cfg.SettingsPath)
}

func printEffective(w io.Writer, eff config.Effective) {
	s := present.StdoutStyles()
	unset := s.Comment.Render("(unset)")
	for _, row := range [][2]string{
		{"profile", eff.Profile},
		{"region", eff.Region},
		{"agent-id", eff.AgentID},
		{"agent-alias-id", eff.AgentAliasID},
		{"knowledge-base-id", eff.KnowledgeBaseID},
		{"data-source-id", eff.DataSourceID},
	} {
		v := row[1]
		if v == "" {
			v = unset
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", s.Flag.Render(fmt.Sprintf("%-18s", row[0])), v)
	}
}

func initSettings(rt *runtime) error {
	cfg := rt.cfg
	notBlank := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New("required")
		}
		return nil
	}

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("AWS profile").Placeholder(config.DefaultProfile).Value(&cfg.Profile),
			huh.NewInput().Title("AWS region").Placeholder(config.DefaultRegion).Value(&cfg.Region),
		),
		huh.NewGroup(
			huh.NewInput().Title("Agent ID").Validate(notBlank).Value(&cfg.AgentID),
			huh.NewInput().Title("Agent alias ID").Validate(notBlank).Value(&cfg.AgentAliasID),
			huh.NewInput().Title("Knowledge base ID").Description("Optional; used by retrieve and ingest.").Value(&cfg.KnowledgeBaseID),
			huh.NewInput().Title("Data source ID").Description("Optional; used by ingest.").Value(&cfg.DataSourceID),
		),
		huh.NewGroup(
			huh.NewInput().Title("OpenSearch collection endpoint").Description("Optional; used by index.").Value(&cfg.OpenSearch.Endpoint),
		),
	).WithTheme(themeFrom(cfg.Theme)).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errs.Wrap(err, "User canceled.")
		}
		return errs.Wrap(err, "Prompt failed.")
	}

	for _, p := range []*string{&cfg.Profile, &cfg.Region, &cfg.AgentID, &cfg.AgentAliasID, &cfg.KnowledgeBaseID, &cfg.DataSourceID, &cfg.OpenSearch.Endpoint} {
		*p = strings.TrimSpace(*p)
	}
	if err := config.SaveConfigFile(cfg.SettingsPath, cfg); err != nil {
		return err
	}
	rt.cfg.Settings = cfg.Settings
	if !cfg.Quiet {
		present.PrintConfirmation(rt.stderr, "wrote", cfg.SettingsPath)
	}
	return nil
}
