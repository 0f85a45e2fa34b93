package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/KromDaniel/redos/pkg/redos"
)

var (
	colorSafe         = lipgloss.Color("#2CD7C7")
	colorVulnerable   = lipgloss.Color("#E74C3C")
	colorInconclusive = lipgloss.Color("#F4D03F")
	colorMuted        = lipgloss.Color("#6C7A89")
)

var styles = struct {
	Safe         lipgloss.Style
	Vulnerable   lipgloss.Style
	Inconclusive lipgloss.Style
	Muted        lipgloss.Style
	Pattern      lipgloss.Style
}{
	Safe:         lipgloss.NewStyle().Bold(true).Foreground(colorSafe),
	Vulnerable:   lipgloss.NewStyle().Bold(true).Foreground(colorVulnerable),
	Inconclusive: lipgloss.NewStyle().Bold(true).Foreground(colorInconclusive),
	Muted:        lipgloss.NewStyle().Foreground(colorMuted),
	Pattern:      lipgloss.NewStyle().Bold(true),
}

// printer writes results, styled only when w is a terminal.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, color: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// status is the one-word verdict of a result.
type status int

const (
	statusSafe status = iota
	statusVulnerable
	statusInconclusive
	statusError
)

func (s status) String() string {
	switch s {
	case statusSafe:
		return "safe"
	case statusVulnerable:
		return "vulnerable"
	case statusInconclusive:
		return "inconclusive"
	}
	return "error"
}

func (s status) exitCode() int {
	switch s {
	case statusSafe:
		return exitSafe
	case statusVulnerable:
		return exitVulnerable
	}
	return exitInconclusive
}

func statusOf(report *redos.Report, err error) status {
	switch {
	case err != nil:
		return statusError
	case report.Inconclusive():
		return statusInconclusive
	case report.Vulnerable:
		return statusVulnerable
	}
	return statusSafe
}

// result is one analysed pattern, as printed by check and scan.
type result struct {
	Name     string        `json:"name,omitempty"`
	Pattern  string        `json:"pattern"`
	Status   string        `json:"status"`
	Expect   string        `json:"expect,omitempty"`
	Failed   bool          `json:"failed"`
	Cached   bool          `json:"cached,omitempty"`
	Report   *redos.Report `json:"report,omitempty"`
	Error    string        `json:"error,omitempty"`
	status   status
	mismatch bool
}

func newResult(name, pattern string, report *redos.Report, err error) result {
	r := result{Name: name, Pattern: pattern, Report: report, status: statusOf(report, err)}
	r.Status = r.status.String()
	if err != nil {
		r.Error = err.Error()
	}
	r.Failed = r.status != statusSafe
	return r
}

// expect applies a declared expectation; a matching verdict is not a failure.
func (r *result) expect(want string) {
	if want == "" || r.status == statusError || r.status == statusInconclusive {
		return
	}
	r.Expect = want
	r.mismatch = want != r.Status
	r.Failed = r.mismatch
}

func (p *printer) result(r result) {
	var label string
	switch r.status {
	case statusSafe:
		label = p.render(styles.Safe, "SAFE")
	case statusVulnerable:
		label = p.render(styles.Vulnerable, "VULNERABLE")
	case statusInconclusive:
		label = p.render(styles.Inconclusive, "INCONCLUSIVE")
	default:
		label = p.render(styles.Vulnerable, "ERROR")
	}

	name := r.Pattern
	if r.Name != "" {
		name = r.Name + " " + p.render(styles.Muted, r.Pattern)
	}
	fmt.Fprintf(p.w, "%s %s\n", label, p.render(styles.Pattern, name))

	if r.Error != "" {
		fmt.Fprintf(p.w, "    %s\n", r.Error)
		return
	}
	rep := r.Report
	kind := rep.Kind.String()
	if rep.Degree > 0 {
		kind = fmt.Sprintf("%s, degree %d", kind, rep.Degree)
		if rep.DegreeAtLeast {
			kind += "+"
		}
	}
	fmt.Fprintf(p.w, "    %s\n", p.render(styles.Muted, kind))
	if rep.Witness != nil {
		fmt.Fprintf(p.w, "    attack: %s\n", rep.Witness)
	}
	if rep.Error != "" {
		fmt.Fprintf(p.w, "    %s\n", rep.Error)
	}
	if r.mismatch {
		fmt.Fprintf(p.w, "    expected %s\n", r.Expect)
	}
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCode is the worst code among results, counting expectation
// mismatches as vulnerable.
func exitCode(results []result) int {
	code := exitSafe
	for _, r := range results {
		c := exitSafe
		switch {
		case r.status == statusError || r.status == statusInconclusive:
			c = exitInconclusive
		case r.Failed:
			c = exitVulnerable
		}
		code = max(code, c)
	}
	return code
}
