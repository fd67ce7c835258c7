package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/dotcommander/kbagent/internal/present"
)

func useLine(cmd *cobra.Command) string {
	appName := filepath.Base(os.Args[0])

	if present.StdoutRenderer().ColorProfile() == termenv.TrueColor {
		appName = present.MakeGradientText(present.StdoutStyles().AppName, appName)
	}

	args := "[OPTIONS] [QUERY]"
	if cmd.HasParent() {
		args = cmd.CommandPath()[len(cmd.Root().Name())+1:] + " [OPTIONS]"
	}
	return fmt.Sprintf("%s %s", appName, present.StdoutStyles().CliArgs.Render(args))
}

func usageFunc(cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	s := present.StdoutStyles()

	_, _ = fmt.Fprintf(w, "Usage:\n  %s\n\n", useLine(cmd))

	if cmd.HasAvailableSubCommands() {
		_, _ = fmt.Fprintln(w, "Commands:")
		for _, c := range cmd.Commands() {
			if !c.IsAvailableCommand() {
				continue
			}
			_, _ = fmt.Fprintf(w, "  %-22s %s\n", s.Flag.Render(c.Name()), s.FlagDesc.Render(c.Short))
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintln(w, "Options:")
	printFlags(w, s, cmd.LocalFlags())
	if inherited := cmd.InheritedFlags(); inherited.HasAvailableFlags() {
		_, _ = fmt.Fprintln(w, "\nGlobal options:")
		printFlags(w, s, inherited)
	}

	if ex, ok := examples[cmd.Example]; ok {
		_, _ = fmt.Fprintf(
			w,
			"\nExample:\n  %s\n  %s\n",
			s.Comment.Render("# "+cmd.Example),
			cheapHighlighting(s, ex),
		)
	} else if cmd.HasExample() {
		_, _ = fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
	}

	return nil
}

func printFlags(w io.Writer, s present.Styles, flags *flag.FlagSet) {
	flags.VisitAll(func(f *flag.Flag) {
		if f.Hidden {
			return
		}
		if f.Shorthand == "" {
			_, _ = fmt.Fprintf(
				w,
				"  %-44s %s\n",
				s.Flag.Render("--"+f.Name),
				s.FlagDesc.Render(f.Usage),
			)
		} else {
			_, _ = fmt.Fprintf(
				w,
				"  %s%s %-40s %s\n",
				s.Flag.Render("-"+f.Shorthand),
				s.FlagComma,
				s.Flag.Render("--"+f.Name),
				s.FlagDesc.Render(f.Usage),
			)
		}
	})
}
