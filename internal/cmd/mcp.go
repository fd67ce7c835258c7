package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	imcp "github.com/dotcommander/kbagent/internal/mcp"
)

func newMCPCmd(rt *runtime) *cobra.Command {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol integration",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve agent, retrieval and ingestion tools over stdio",
		Long: `Serve agent, retrieval and ingestion tools over stdio.

Tool arguments take precedence over the flags given here, which take
precedence over the settings file. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := imcp.New(rt.service(), &rt.cfg, rt.build.Version, rt.log)
			return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	flags := serveCmd.Flags()
	addAgentFlags(flags, &rt.cfg)
	addKnowledgeBaseFlag(flags, &rt.cfg)
	addDataSourceFlag(flags, &rt.cfg)

	mcpCmd.AddCommand(serveCmd)
	return mcpCmd
}
