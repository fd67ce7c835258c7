package cmd

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/dotcommander/kbagent/internal/errs"
	"github.com/dotcommander/kbagent/internal/present"
)

func handleError(w io.Writer, err error) {
	format := "\n%s\n\n"
	styles := present.StderrStyles()

	var ferr flagParseError
	if errors.As(err, &ferr) {
		args := []any{
			fmt.Sprintf(
				"Check out %s %s",
				styles.InlineCode.Render("kbagent -h"),
				styles.Comment.Render("for help."),
			),
			fmt.Sprintf(
				ferr.ReasonFormat(),
				styles.InlineCode.Render(ferr.Flag()),
			),
		}
		_, _ = fmt.Fprintf(w, format+"%s\n\n", args...)
		return
	}

	var merr errs.Error
	if errors.As(err, &merr) {
		formatArgs := []any{styles.ErrPadding.Render(styles.ErrorHeader.String(), merr.ReasonText())}
		if merr.Err != nil && !errors.Is(merr.Err, huh.ErrUserAborted) {
			format += "%s\n\n"
			formatArgs = append(formatArgs, styles.ErrPadding.Render(styles.ErrorDetails.Render(err.Error())))
		}
		_, _ = fmt.Fprintf(w, format, formatArgs...)
		return
	}

	_, _ = fmt.Fprintf(w, format, styles.ErrPadding.Render(styles.ErrorDetails.Render(err.Error())))
}

// remoteError wraps a failed remote call with reason unless err already
// carries a user-facing reason. The AWS error code, when known, is appended
// to the reason.
func remoteError(err error, reason string) error {
	var e errs.Error
	if errors.As(err, &e) {
		return err
	}
	if code := errs.APICode(err); code != "" {
		reason = fmt.Sprintf("%s (%s)", strings.TrimSuffix(reason, "."), code)
	}
	return errs.Wrap(err, reason)
}

var (
	needsArgRe    = regexp.MustCompile(`^flag needs an argument: (?:'.' in )?(-{1,2}[\w-]+)`)
	unknownFlagRe = regexp.MustCompile(`^unknown flag: (--[\w-]+)`)
	unknownShRe   = regexp.MustCompile(`^unknown shorthand flag: '.' in (-\w+)`)
	invalidArgRe  = regexp.MustCompile(`^invalid argument ".*" for "(.*?)" flag`)
)

// flagParseError is a pflag parse failure split into the offending flag and
// a reason template.
type flagParseError struct {
	err    error
	reason string
	flag   string
}

func newFlagParseError(err error) flagParseError {
	s := err.Error()
	fe := flagParseError{err: err, reason: s}
	switch {
	case needsArgRe.MatchString(s):
		fe.reason = "Flag %s needs an argument."
		fe.flag = needsArgRe.FindStringSubmatch(s)[1]
	case unknownFlagRe.MatchString(s):
		fe.reason = "Flag %s is missing."
		fe.flag = unknownFlagRe.FindStringSubmatch(s)[1]
	case unknownShRe.MatchString(s):
		fe.reason = "Short flag %s is missing."
		fe.flag = unknownShRe.FindStringSubmatch(s)[1]
	case invalidArgRe.MatchString(s):
		fe.reason = "Flag %s have an invalid argument."
		fe.flag = invalidArgRe.FindStringSubmatch(s)[1]
	default:
		fe.reason = "%s"
		fe.flag = s
	}
	return fe
}

func (f flagParseError) Error() string        { return f.err.Error() }
func (f flagParseError) Unwrap() error        { return f.err }
func (f flagParseError) ReasonFormat() string { return f.reason }
func (f flagParseError) Flag() string         { return f.flag }
