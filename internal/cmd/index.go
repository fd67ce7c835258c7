package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/dotcommander/kbagent/internal/awsconf"
	"github.com/dotcommander/kbagent/internal/config"
	"github.com/dotcommander/kbagent/internal/errs"
	"github.com/dotcommander/kbagent/internal/opensearch"
	"github.com/dotcommander/kbagent/internal/present"
)

// awsCredentials resolves the signing credentials for eff.
func awsCredentials(ctx context.Context, eff config.Effective) (aws.CredentialsProvider, error) {
	cfg, err := awsconf.Load(ctx, eff)
	if err != nil {
		return nil, err
	}
	return cfg.Credentials, nil
}

func newIndexCmd(rt *runtime) *cobra.Command {
	var yes bool
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the OpenSearch Serverless vector index",
	}

	osc := &rt.cfg.OpenSearch
	persistent := indexCmd.PersistentFlags()
	persistent.StringVar(&osc.Endpoint, "endpoint", osc.Endpoint, usage("endpoint"))
	persistent.StringVar(&osc.Index, "index", osc.Index, usage("index"))

	indexSpec := func() opensearch.IndexSpec {
		return opensearch.IndexSpec{Name: osc.Index, Dimension: osc.Dimension, Engine: osc.Engine}
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create the vector index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := rt.indexManager(cmd.Context())
			if err != nil {
				return err
			}
			out, err := m.Create(cmd.Context(), indexSpec())
			if err != nil {
				return remoteError(err, "Could not create the index.")
			}
			return rt.printIndexResult(cmd, "created", osc.Index, out)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the vector index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := confirm(yes, rt.cfg.Theme, fmt.Sprintf("Delete index %s?", osc.Index)); err != nil {
				return err
			}
			m, err := rt.indexManager(cmd.Context())
			if err != nil {
				return err
			}
			out, err := m.Delete(cmd.Context(), osc.Index)
			if err != nil {
				return remoteError(err, "Could not delete the index.")
			}
			return rt.printIndexResult(cmd, "deleted", osc.Index, out)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Print the index settings and mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := rt.indexManager(cmd.Context())
			if err != nil {
				return err
			}
			out, err := m.Get(cmd.Context(), osc.Index)
			if opensearch.IsNotFound(err) {
				return errs.Wrapf(err, "Index %s does not exist.", osc.Index)
			}
			if err != nil {
				return remoteError(err, "Could not read the index.")
			}
			return writeJSON(cmd, out)
		},
	}

	recreateCmd := &cobra.Command{
		Use:   "recreate",
		Short: "Delete the index and create it again with the faiss engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := confirm(yes, rt.cfg.Theme, fmt.Sprintf("Recreate index %s? Its documents will be lost.", osc.Index)); err != nil {
				return err
			}
			m, err := rt.indexManager(cmd.Context())
			if err != nil {
				return err
			}
			out, err := m.Recreate(cmd.Context(), indexSpec())
			if err != nil {
				return remoteError(err, "Could not recreate the index.")
			}
			return rt.printIndexResult(cmd, "recreated", osc.Index, out)
		},
	}

	for _, c := range []*cobra.Command{createCmd, recreateCmd} {
		c.Flags().IntVar(&osc.Dimension, "dimension", osc.Dimension, usage("dimension"))
	}
	createCmd.Flags().StringVar(&osc.Engine, "engine", osc.Engine, usage("engine"))
	for _, c := range []*cobra.Command{deleteCmd, recreateCmd} {
		c.Flags().BoolVarP(&yes, "yes", "y", false, present.StdoutStyles().FlagDesc.Render("Do not ask for confirmation."))
	}

	indexCmd.AddCommand(createCmd, deleteCmd, checkCmd, recreateCmd)
	return indexCmd
}

func (rt *runtime) indexManager(ctx context.Context) (*opensearch.Manager, error) {
	if rt.cfgErr != nil {
		return nil, rt.cfgErr
	}
	eff := rt.effective()
	creds, err := rt.credentials(ctx, eff)
	if err != nil {
		return nil, errs.Wrap(err, "Could not load AWS credentials.")
	}
	m, err := opensearch.New(opensearch.Options{
		Endpoint:    rt.cfg.OpenSearch.Endpoint,
		Region:      eff.Region,
		Credentials: creds,
		HTTPClient:  &http.Client{Timeout: rt.cfg.OpenSearch.Timeout},
		Logger:      rt.log,
	})
	if err != nil {
		return nil, errs.Wrapf(err,
			"Set the collection endpoint with %s or in the settings file.",
			present.StderrStyles().InlineCode.Render("--endpoint"),
		)
	}
	return m, nil
}

func (rt *runtime) printIndexResult(cmd *cobra.Command, action, index string, out map[string]any) error {
	if rt.cfg.Quiet {
		return nil
	}
	if present.IsOutputTTY() {
		present.PrintConfirmation(cmd.OutOrStdout(), action, "index "+index)
		return nil
	}
	return writeJSON(cmd, out)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v) //nolint:wrapcheck
}

// confirm asks before a destructive operation. Without a terminal, or with
// yes set, it does not ask.
func confirm(yes bool, theme, title string) error {
	if yes || !present.IsInputTTY() || !present.IsOutputTTY() {
		return nil
	}
	var ok bool
	if err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Affirmative("Yes").Negative("No").Value(&ok),
	)).WithTheme(themeFrom(theme)).Run(); err != nil {
		return errs.Wrap(err, "User canceled.")
	}
	if !ok {
		return errs.Error{Reason: "User canceled."}
	}
	return nil
}
