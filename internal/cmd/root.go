package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	glamour "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dotcommander/kbagent/internal/agent"
	"github.com/dotcommander/kbagent/internal/config"
	"github.com/dotcommander/kbagent/internal/errs"
	"github.com/dotcommander/kbagent/internal/logger"
	"github.com/dotcommander/kbagent/internal/present"
	"github.com/dotcommander/kbagent/internal/repl"
)

type runtime struct {
	build  BuildInfo
	cfg    config.Config
	cfgErr error

	// clients builds the SDK clients. Tests swap it for fakes.
	clients     agent.ClientFactory
	credentials func(context.Context, config.Effective) (aws.CredentialsProvider, error)
	stderr      io.Writer

	log *zap.Logger
	svc *agent.Service
}

func newRuntime(build BuildInfo, cfg config.Config, cfgErr error) *runtime {
	return &runtime{
		build:       normalizeBuildInfo(build),
		cfg:         cfg,
		cfgErr:      cfgErr,
		clients:     agent.NewAWSClients,
		credentials: awsCredentials,
		stderr:      os.Stderr,
		log:         zap.NewNop(),
	}
}

// NewRootCmd constructs the Cobra root command.
func NewRootCmd(build BuildInfo, cfg config.Config, cfgErr error) *cobra.Command {
	return newRootCmd(newRuntime(build, cfg, cfgErr))
}

func newRootCmd(rt *runtime) *cobra.Command {
	// XXX: unset error styles in Glamour dark and light styles.
	glamour.DarkStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)
	glamour.LightStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)

	rootCmd := &cobra.Command{
		Use:           "kbagent [query]",
		Short:         "Ask a Bedrock agent from the command line.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       randomExample(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.setupLogger()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)
			return rt.runAsk(cmd, args)
		},
	}

	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.Version = rt.build.Version
	rootCmd.SetVersionTemplate(versionTemplate(rt.build))

	initRootFlags(rootCmd, &rt.cfg)

	rootCmd.AddCommand(newRetrieveCmd(rt))
	rootCmd.AddCommand(newIngestCmd(rt))
	rootCmd.AddCommand(newIndexCmd(rt))
	rootCmd.AddCommand(newMCPCmd(rt))
	rootCmd.AddCommand(newConfigCmd(rt))
	rootCmd.AddCommand(newManCmd(rootCmd))
	rootCmd.AddCommand(newUpgradeCmd(rt))

	rootCmd.InitDefaultCompletionCmd()

	return rootCmd
}

func (rt *runtime) setupLogger() error {
	level := rt.cfg.LogLevel
	if rt.cfg.Debug {
		level = "debug"
	}
	l, err := logger.New(rt.stderr, level)
	if err != nil {
		return errs.Wrap(err, "Invalid log level.")
	}
	rt.log = l
	return nil
}

// service returns the agent service, creating it on first use.
func (rt *runtime) service() *agent.Service {
	if rt.svc == nil {
		rt.svc = agent.New(rt.clients,
			agent.WithLogger(rt.log),
			agent.WithTrace(rt.cfg.Debug),
		)
	}
	return rt.svc
}

// effective resolves the command line overrides against the stored settings.
func (rt *runtime) effective() config.Effective {
	eff := rt.cfg.Resolve(rt.cfg.Overrides)
	rt.log.Debug("effective configuration", zap.Stringer("config", eff))
	return eff
}

func (rt *runtime) sessionID(def string) string {
	switch {
	case rt.cfg.NewSession:
		return uuid.NewString()
	case rt.cfg.SessionID != "":
		return rt.cfg.SessionID
	default:
		return def
	}
}

func (rt *runtime) runAsk(cmd *cobra.Command, args []string) error {
	eff := rt.effective()
	if err := eff.Validate(config.OpInvokeAgent); err != nil {
		return err
	}

	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		loop := &repl.Loop{
			Agent:     rt.service(),
			Effective: eff,
			SessionID: rt.sessionID(repl.DefaultSessionID),
			In:        cmd.InOrStdin(),
			Out:       cmd.OutOrStdout(),
			Styles:    present.StdoutStyles(),
			Logger:    rt.log,
		}
		return loop.Run(cmd.Context())
	}

	session := rt.sessionID(agent.DefaultSessionID)
	if rt.cfg.NoStream {
		return rt.askBlocking(cmd, query, session, eff)
	}
	return rt.askStreaming(cmd, query, session, eff)
}

func (rt *runtime) askStreaming(cmd *cobra.Command, query, session string, eff config.Effective) error {
	st, err := rt.service().InvokeStream(cmd.Context(), query, session, eff)
	if err != nil {
		return invokeError(err)
	}
	defer st.Close() //nolint:errcheck

	out := cmd.OutOrStdout()
	var wrote bool
	for chunk, err := range st.Chunks() {
		if err != nil {
			if wrote {
				_, _ = fmt.Fprintln(out)
			}
			return invokeError(err)
		}
		wrote = true
		_, _ = fmt.Fprint(out, chunk)
	}
	_, _ = fmt.Fprintln(out)
	return nil
}

func (rt *runtime) askBlocking(cmd *cobra.Command, query, session string, eff config.Effective) error {
	answer, err := rt.service().Invoke(cmd.Context(), query, session, eff)
	if err != nil {
		return invokeError(err)
	}
	if present.IsOutputTTY() {
		if rendered, err := present.RenderMarkdown(answer, markdownStyle(rt.cfg.Theme), rt.cfg.WordWrap); err == nil {
			answer = rendered
		}
	}
	if !strings.HasSuffix(answer, "\n") {
		answer += "\n"
	}
	_, _ = fmt.Fprint(cmd.OutOrStdout(), answer)
	return nil
}

func invokeError(err error) error {
	return remoteError(err, "Could not get an answer from the agent.")
}

// markdownStyle maps a form theme to the glamour style closest to it.
func markdownStyle(theme string) string {
	if theme == "dracula" {
		return "dracula"
	}
	return ""
}

func themeFrom(theme string) *huh.Theme {
	switch theme {
	case "dracula":
		return huh.ThemeDracula()
	case "catppuccin":
		return huh.ThemeCatppuccin()
	case "base16":
		return huh.ThemeBase16()
	default:
		return huh.ThemeCharm()
	}
}
