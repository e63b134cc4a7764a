package testutils

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT is the part of testing.T used by OutputAsserter.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// OutputOptions controls how captured CLI output is normalized before it is
// compared.
type OutputOptions struct {
	IgnoreTrailingWhitespace bool `default:"true"`
	IgnoreEmptyLines         bool `default:"false"`
	TrimSpace                bool `default:"true"`
	EnableColors             bool `default:"false"`
}

// OutputOption is a functional option for OutputAsserter.
type OutputOption func(*OutputOptions)

func WithIgnoreTrailingWhitespace(v bool) OutputOption {
	return func(o *OutputOptions) { o.IgnoreTrailingWhitespace = v }
}

func WithIgnoreEmptyLines(v bool) OutputOption {
	return func(o *OutputOptions) { o.IgnoreEmptyLines = v }
}

func WithTrimSpace(v bool) OutputOption {
	return func(o *OutputOptions) { o.TrimSpace = v }
}

// WithColors highlights the diff in failure messages.
func WithColors(v bool) OutputOption {
	return func(o *OutputOptions) { o.EnableColors = v }
}

// OutputAsserter compares printed output against an expected transcript and
// reports a unified diff on mismatch.
type OutputAsserter struct {
	t    TestingT
	opts OutputOptions
}

// NewOutputAsserter creates an asserter with default options.
func NewOutputAsserter(t TestingT, opts ...OutputOption) *OutputAsserter {
	o := OutputOptions{}
	defaults.SetDefaults(&o)
	for _, opt := range opts {
		opt(&o)
	}
	return &OutputAsserter{t: t, opts: o}
}

// Options returns the effective options.
func (a *OutputAsserter) Options() OutputOptions {
	return a.opts
}

// Equal fails the test when actual differs from expected after normalization.
func (a *OutputAsserter) Equal(expected, actual string) bool {
	a.t.Helper()
	if diff := a.Diff(expected, actual); diff != "" {
		a.t.Errorf("output mismatch:\n%s", diff)
		return false
	}
	return true
}

// Diff returns a unified diff of the normalized texts, or "" when they match.
func (a *OutputAsserter) Diff(expected, actual string) string {
	want, got := a.normalize(expected), a.normalize(actual)
	if want == got {
		return ""
	}

	edits := myers.ComputeEdits("", want, got)
	unified := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", want, edits))
	if !a.opts.EnableColors {
		return unified
	}
	return colorize(unified)
}

func (a *OutputAsserter) normalize(text string) string {
	if a.opts.TrimSpace {
		text = strings.TrimSpace(text)
	}

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if a.opts.IgnoreTrailingWhitespace {
			line = strings.TrimRight(line, " \t\r")
		}
		if a.opts.IgnoreEmptyLines && line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func colorize(diff string) string {
	red, green, cyan := color.New(color.FgRed), color.New(color.FgGreen), color.New(color.FgCyan)
	red.EnableColor()
	green.EnableColor()
	cyan.EnableColor()

	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "@@"):
			lines[i] = cyan.Sprint(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = red.Sprint(strings.ReplaceAll(line, " ", "·"))
		case strings.HasPrefix(line, "+"):
			lines[i] = green.Sprint(strings.ReplaceAll(line, " ", "·"))
		}
	}
	return strings.Join(lines, "\n")
}
