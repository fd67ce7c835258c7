package cmd

import (
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/dotcommander/kbagent/internal/config"
	"github.com/dotcommander/kbagent/internal/present"
)

// flagHelp describes flags that have no settings counterpart.
var flagHelp = map[string]string{
	"agent-id":       config.Help["agent-id"],
	"alias-id":       config.Help["agent-alias-id"],
	"kb-id":          config.Help["knowledge-base-id"],
	"data-source-id": config.Help["data-source-id"],
	"session-id":     "Session ID that keeps conversation context on the agent.",
	"new-session":    "Start a new session with a random ID.",
	"no-stream":      "Wait for the whole answer and render it as markdown.",
	"debug":          "Log debug details, including agent trace events, to stderr.",
	"help":           "Show help and exit.",
	"version":        "Show version and exit.",
}

func usage(name string) string {
	if h, ok := flagHelp[name]; ok {
		return present.StdoutStyles().FlagDesc.Render(h)
	}
	return present.StdoutStyles().FlagDesc.Render(config.Help[name])
}

func initRootFlags(cmd *cobra.Command, cfg *config.Config) {
	persistent := cmd.PersistentFlags()
	persistent.StringVar(&cfg.Overrides.Profile, "profile", "", usage("profile"))
	persistent.StringVar(&cfg.Overrides.Region, "region", "", usage("region"))
	persistent.BoolVar(&cfg.Debug, "debug", false, usage("debug"))
	persistent.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, usage("log-level"))
	persistent.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, usage("quiet"))

	flags := cmd.Flags()
	addAgentFlags(flags, cfg)
	flags.StringVarP(&cfg.SessionID, "session-id", "s", "", usage("session-id"))
	flags.BoolVarP(&cfg.NewSession, "new-session", "n", false, usage("new-session"))
	flags.BoolVar(&cfg.NoStream, "no-stream", false, usage("no-stream"))
	flags.IntVar(&cfg.WordWrap, "word-wrap", cfg.WordWrap, usage("word-wrap"))
	flags.BoolP("help", "h", false, usage("help"))
	flags.BoolP("version", "v", false, usage("version"))
	flags.SortFlags = false

	cmd.MarkFlagsMutuallyExclusive("session-id", "new-session")
}

func addAgentFlags(flags *flag.FlagSet, cfg *config.Config) {
	flags.StringVar(&cfg.Overrides.AgentID, "agent-id", "", usage("agent-id"))
	flags.StringVar(&cfg.Overrides.AgentAliasID, "alias-id", "", usage("alias-id"))
}

func addKnowledgeBaseFlag(flags *flag.FlagSet, cfg *config.Config) {
	flags.StringVar(&cfg.Overrides.KnowledgeBaseID, "kb-id", "", usage("kb-id"))
}

func addDataSourceFlag(flags *flag.FlagSet, cfg *config.Config) {
	flags.StringVar(&cfg.Overrides.DataSourceID, "data-source-id", "", usage("data-source-id"))
}
