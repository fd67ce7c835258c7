package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/kbagent/internal/agent"
	"github.com/dotcommander/kbagent/internal/config"
	"github.com/dotcommander/kbagent/internal/errs"
	"github.com/dotcommander/kbagent/internal/present"
)

type retrieveOptions struct {
	queries    []string
	maxResults int
	width      int
	asJSON     bool
}

type queryResults struct {
	Query   string         `json:"query"`
	Results []agent.Result `json:"results"`
}

func newRetrieveCmd(rt *runtime) *cobra.Command {
	opts := retrieveOptions{}
	cmd := &cobra.Command{
		Use:   "retrieve [query]",
		Short: "Search the knowledge base without invoking the agent",
		Example: `  kbagent retrieve "how do I rotate keys?"
  kbagent retrieve --query "billing" --query "quotas" --max-results 3 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			queries := opts.queries
			if q := strings.TrimSpace(strings.Join(args, " ")); q != "" {
				queries = append([]string{q}, queries...)
			}
			if len(queries) == 0 {
				return errs.Error{
					Reason: "You haven't provided a query.",
					Err:    errs.UserErrorf("Give it as arguments or with %s.", present.StderrStyles().InlineCode.Render("--query")),
				}
			}
			return rt.runRetrieve(cmd, queries, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&opts.queries, "query", nil, present.StdoutStyles().FlagDesc.Render("Query to run; repeat to run several concurrently."))
	addKnowledgeBaseFlag(flags, &rt.cfg)
	flags.IntVar(&opts.maxResults, "max-results", rt.cfg.MaxResults, usage("max-results"))
	flags.IntVar(&opts.width, "width", 0, present.StdoutStyles().FlagDesc.Render("Truncate passages to this many characters; 0 prints them whole."))
	flags.BoolVar(&opts.asJSON, "json", false, present.StdoutStyles().FlagDesc.Render("Print results as JSON."))
	return cmd
}

func (rt *runtime) runRetrieve(cmd *cobra.Command, queries []string, opts retrieveOptions) error {
	eff := rt.effective()
	if err := eff.Validate(config.OpRetrieve); err != nil {
		return err
	}

	svc := rt.service()
	all := make([]queryResults, len(queries))
	g, ctx := errgroup.WithContext(cmd.Context())
	for i, q := range queries {
		g.Go(func() error {
			res, err := svc.Retrieve(ctx, q, eff, opts.maxResults)
			if err != nil {
				return fmt.Errorf("query %q: %w", q, err)
			}
			all[i] = queryResults{Query: q, Results: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return remoteError(err, "Could not retrieve from the knowledge base.")
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if len(all) == 1 {
			return enc.Encode(all[0].Results) //nolint:wrapcheck
		}
		return enc.Encode(all) //nolint:wrapcheck
	}
	for i, qr := range all {
		if len(all) > 1 {
			if i > 0 {
				_, _ = fmt.Fprintln(out)
			}
			_, _ = fmt.Fprintln(out, present.StdoutStyles().AppName.Render("Query: "+qr.Query))
		}
		printResults(out, present.StdoutStyles(), qr.Results, opts.width)
	}
	return nil
}

func printResults(w io.Writer, s present.Styles, results []agent.Result, width int) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, s.Comment.Render("No results."))
		return
	}
	for i, r := range results {
		_, _ = fmt.Fprintf(w, "\n%s %s\n", s.Flag.Render(fmt.Sprintf("Result %d", i+1)), s.Score.Render(fmt.Sprintf("(score: %.4f)", r.Score)))
		if r.Location != "" {
			_, _ = fmt.Fprintln(w, s.Link.Render(r.Location))
		}
		_, _ = fmt.Fprintln(w, truncate(r.Content, width))
	}
}

// truncate shortens s to width runes, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	s = strings.TrimSpace(s)
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width]) + "..."
}
