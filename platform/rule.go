package platform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
)

// Rule is one piece of evidence that identifies a board or yields its
// serial number.
//
// Evaluate returns the matched text (the first capture group if the pattern
// has one) and whether the rule matched.  An error means the evidence could
// not be gathered; callers treat it as a non-match.
type Rule interface {
	Evaluate(ctx context.Context, ev Evidence) (text string, ok bool, err error)
	String() string
}

type alwaysMatch struct{}

// AlwaysMatch matches unconditionally.  Used to force a board selection.
func AlwaysMatch() Rule { return alwaysMatch{} }

func (alwaysMatch) Evaluate(context.Context, Evidence) (string, bool, error) { return "", true, nil }
func (alwaysMatch) String() string                                           { return "always" }

type fileContains struct {
	path string
	re   *regexp.Regexp
}

// FileContains matches when path exists and its contents (NULs removed)
// contain pattern.  A missing file is a plain non-match.
func FileContains(path, pattern string) Rule {
	return &fileContains{path: path, re: regexp.MustCompile(pattern)}
}

func (r *fileContains) Evaluate(_ context.Context, ev Evidence) (string, bool, error) {
	text, err := ev.ReadText(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	m, ok := extract(r.re, text)
	return m, ok, nil
}

func (r *fileContains) String() string {
	return fmt.Sprintf("file %s =~ /%s/", r.path, r.re)
}

type commandContains struct {
	command string
	re      *regexp.Regexp
}

// CommandOutputContains matches when command exits zero within the
// evidence timeout and its standard output contains pattern.
func CommandOutputContains(command, pattern string) Rule {
	return &commandContains{command: command, re: regexp.MustCompile(pattern)}
}

func (r *commandContains) Evaluate(ctx context.Context, ev Evidence) (string, bool, error) {
	out, err := ev.RunCommand(ctx, r.command)
	if err != nil {
		return "", false, err
	}
	m, ok := extract(r.re, out)
	return m, ok, nil
}

func (r *commandContains) String() string {
	return fmt.Sprintf("command %q =~ /%s/", r.command, r.re)
}

func extract(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return m[1], true
	}
	return m[0], true
}
