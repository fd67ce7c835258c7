// Package repl implements the interactive query loop.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/muesli/cancelreader"
	"go.uber.org/zap"

	"github.com/dotcommander/kbagent/internal/agent"
	"github.com/dotcommander/kbagent/internal/config"
	"github.com/dotcommander/kbagent/internal/errs"
	"github.com/dotcommander/kbagent/internal/logger"
	"github.com/dotcommander/kbagent/internal/present"
)

// DefaultSessionID is the session used by the loop when none is given.
const DefaultSessionID = "interactive-session"

const helpText = `Available commands:
  - Type any question to query the agent
  - 'copy' - Copy the last answer to the clipboard
  - 'exit', 'quit', 'q' - Exit
  - 'help' - Show this help message`

// Streamer starts an agent invocation. *agent.Service implements it.
type Streamer interface {
	InvokeStream(ctx context.Context, query, sessionID string, eff config.Effective) (*agent.Stream, error)
}

// Loop reads queries line by line and streams each answer.
type Loop struct {
	Agent     Streamer
	Effective config.Effective
	SessionID string

	In     io.Reader
	Out    io.Writer
	Styles present.Styles
	Logger *zap.Logger

	// Copy writes text to the clipboard. Defaults to clipboard.WriteAll.
	Copy func(string) error

	last string
}

// Run executes the loop until an exit command, EOF or ctx is done. Errors
// from individual queries are printed and do not end the loop.
func (l *Loop) Run(ctx context.Context) error {
	if l.SessionID == "" {
		l.SessionID = DefaultSessionID
	}
	if l.Copy == nil {
		l.Copy = clipboard.WriteAll
	}
	log := logger.OrNop(l.Logger)

	l.printf("%s\n", present.Banner(l.Styles, "Bedrock Agent Interactive CLI", "session "+l.SessionID))
	l.printf("Type 'exit' or 'quit' to end the session\n")
	l.printf("Type 'help' for available commands\n")

	var src io.Reader = l.In
	release := func() {}
	if in, err := cancelreader.NewReader(l.In); err != nil {
		log.Debug("input cannot be canceled", zap.Error(err))
	} else {
		defer in.Cancel()
		stop := context.AfterFunc(ctx, func() { in.Cancel() })
		defer stop()
		src, release = in, func() { _ = in.Close() }
	}

	done := make(chan struct{})
	defer close(done)

	lines := readLines(src, done, release)
	for {
		l.printf("\n%s ", l.Styles.Prompt.Render("Query:"))

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			l.printf("\n\nGoodbye!\n")
			return nil
		case line, ok = <-lines:
		}
		if !ok || ctx.Err() != nil {
			l.printf("\n\nGoodbye!\n")
			return nil
		}

		query := strings.TrimSpace(line)
		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "quit", "q":
			l.printf("\nGoodbye!\n")
			return nil
		case "help":
			l.printf("\n%s\n", helpText)
			continue
		case "copy":
			l.copyLast()
			continue
		}

		if err := l.ask(ctx, query); err != nil {
			log.Debug("query failed", zap.Error(err))
			l.printf("\n%s %s\n", l.Styles.StatusBad.Render("Error:"), errs.Message(err))
		}
	}
}

func (l *Loop) ask(ctx context.Context, query string) error {
	st, err := l.Agent.InvokeStream(ctx, query, l.SessionID, l.Effective)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	l.printf("\n%s\n", l.Styles.Status.Render("Response:"))
	var sb strings.Builder
	for chunk, err := range st.Chunks() {
		if err != nil {
			return err
		}
		sb.WriteString(chunk)
		l.printf("%s", chunk)
	}
	l.printf("\n")
	l.last = sb.String()
	return nil
}

func (l *Loop) copyLast() {
	if l.last == "" {
		l.printf("Nothing to copy yet.\n")
		return
	}
	if err := l.Copy(l.last); err != nil {
		l.printf("%s %s\n", l.Styles.StatusBad.Render("Error:"), err)
		return
	}
	l.printf("Copied last answer to the clipboard.\n")
}

func (l *Loop) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(l.Out, format, a...)
}

// readLines feeds lines from r into a channel that is closed at EOF or when
// r is canceled. The goroutine also stops once done is closed, and calls
// release on its way out.
func readLines(r io.Reader, done <-chan struct{}, release func()) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		defer release()
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-done:
				return
			}
		}
	}()
	return ch
}
