package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KromDaniel/redos/internal/config"
)

const emailPattern = `^([a-zA-Z0-9])(([\-.]|[_]+)?([a-zA-Z0-9]+))*(@){1}[a-z0-9]+[.]{1}(([a-z]{2,3})|([a-z]{2,3}[.]{1}[a-z]{2,3}))$`

// syncBuffer is written by the watch goroutine while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func execute(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(newApp(&out, &errOut))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), codeOf(t, err, errOut.String())
}

func codeOf(t *testing.T, err error, stderr string) int {
	t.Helper()
	if err == nil {
		return exitSafe
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	t.Logf("stderr: %s", stderr)
	return -1
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		contains []string
	}{
		{
			name:     "safe",
			args:     []string{"check", `ab*(\.ab*)*`},
			wantCode: exitSafe,
			contains: []string{"SAFE", "NO_IDA"},
		},
		{
			name:     "exponential",
			args:     []string{"check", `^(a+)+$`},
			wantCode: exitVulnerable,
			contains: []string{"VULNERABLE", "EDA", "attack:"},
		},
		{
			name:     "polynomial",
			args:     []string{"check", `a*a*`},
			wantCode: exitVulnerable,
			contains: []string{"IDA, degree 2"},
		},
		{
			name:     "polynomial ignored without ida",
			args:     []string{"check", "--ida=false", `a*a*`},
			wantCode: exitSafe,
			contains: []string{"NO_EDA"},
		},
		{
			name:     "compile error outranks vulnerable",
			args:     []string{"check", `(a+)+`, `(a+`},
			wantCode: exitInconclusive,
			contains: []string{"ERROR"},
		},
		{
			name:     "inconclusive",
			args:     []string{"check", "--max-product-nodes", "1", emailPattern},
			wantCode: exitInconclusive,
			contains: []string{"INCONCLUSIVE", "ANALYSIS_FAILED"},
		},
		{
			name:     "lookaround needs nonprecise",
			args:     []string{"check", "--preprocessing", "nonprecise", `(?=x)(a+)+`},
			wantCode: exitVulnerable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, code := execute(t, tt.args...)
			assert.Equal(t, tt.wantCode, code, out)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestCheckJSON(t *testing.T) {
	out, code := execute(t, "check", "--json", `(a+)+`, `abc`)
	assert.Equal(t, exitVulnerable, code)

	var results []result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "vulnerable", results[0].Status)
	assert.True(t, results[0].Failed)
	require.NotNil(t, results[0].Report)
	assert.NotNil(t, results[0].Report.Witness)
	assert.Equal(t, "safe", results[1].Status)
	assert.False(t, results[1].Failed)
}

func TestCheckRejectsBadFlags(t *testing.T) {
	_, code := execute(t, "check", "--loop-removal", "unroll", "a")
	assert.Equal(t, exitInconclusive, code)

	_, code = execute(t, "check", "--trace", "jaeger", "a")
	assert.Equal(t, -1, code)
}

func TestScan(t *testing.T) {
	txt := writeFile(t, "patterns.txt", "# vetted\nab*c\n(a+)+\n")
	out, code := execute(t, "scan", txt)
	assert.Equal(t, exitVulnerable, code)
	assert.Contains(t, out, "2 patterns: 1 safe, 1 vulnerable, 0 inconclusive, 0 errors; 1 failed")

	yaml := writeFile(t, "redos.yaml", `
analysis:
  epsilon_loop_removal: merging
patterns:
  - name: greeting
    pattern: 'hello'
    expect: safe
  - name: known-bad
    pattern: '(a+)+'
    expect: vulnerable
`)
	out, code = execute(t, "scan", "--jobs", "2", yaml)
	assert.Equal(t, exitSafe, code, out)
	assert.Contains(t, out, "0 failed")
}

func TestScanExpectMismatch(t *testing.T) {
	yaml := writeFile(t, "redos.yaml", "patterns:\n  - pattern: 'a+b'\n    expect: vulnerable\n")
	out, code := execute(t, "scan", yaml)
	assert.Equal(t, exitVulnerable, code)
	assert.Contains(t, out, "expected vulnerable")
}

func TestScanCache(t *testing.T) {
	txt := writeFile(t, "patterns.txt", "(a+)+\nabc\n")
	dir := filepath.Join(t.TempDir(), "cache")

	_, code := execute(t, "scan", "--json", "--cache-dir", dir, txt)
	require.Equal(t, exitVulnerable, code)

	out, code := execute(t, "scan", "--json", "--cache-dir", dir, txt)
	require.Equal(t, exitVulnerable, code)
	var results []result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.Cached, r.Pattern)
	}
}

func TestScanWatch(t *testing.T) {
	path := writeFile(t, "patterns.txt", "abc\n")
	out := &syncBuffer{}
	a := newApp(out, &syncBuffer{})
	s, err := a.newScanner(scanOptions{jobs: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.watch(ctx, path) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "1 patterns: 1 safe")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("abc\n(a+)+\n"), 0o600))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "2 patterns: 1 safe, 1 vulnerable")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

const genConfig = `
patterns:
  - name: word
    pattern: '^[a-z]+$'
  - name: ipv4 octet
    pattern: '^(25[0-5]|2[0-4][0-9]|1?[0-9]?[0-9])$'
`

func TestGen(t *testing.T) {
	cfg := writeFile(t, "redos.yaml", genConfig)
	output := filepath.Join(t.TempDir(), "vetted.go")

	_, code := execute(t, "gen", "--config", cfg, "--package", "vetted", "--output", output, "--with-test")
	require.Equal(t, exitSafe, code)

	src, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(src), "package vetted")
	assert.Contains(t, string(src), "Ipv4Octet")
	assert.Contains(t, string(src), "// Source: redos.yaml")

	testSrc, err := os.ReadFile(filepath.Join(filepath.Dir(output), "vetted_test.go"))
	require.NoError(t, err)
	assert.Contains(t, string(testSrc), "func TestWordPattern(t *testing.T)")
}

func TestGenStdout(t *testing.T) {
	cfg := writeFile(t, "redos.yaml", genConfig)
	out, code := execute(t, "gen", "-c", cfg, "-p", "vetted")
	require.Equal(t, exitSafe, code)
	assert.Contains(t, out, `regexp.MustCompile("^[a-z]+$")`)
}

func TestGenRefusesUnsafe(t *testing.T) {
	cfg := writeFile(t, "redos.yaml", genConfig+"  - name: bad\n    pattern: '(a+)+'\n")
	output := filepath.Join(t.TempDir(), "vetted.go")

	_, code := execute(t, "gen", "--config", cfg, "--package", "vetted", "--output", output)
	assert.Equal(t, exitVulnerable, code)
	assert.NoFileExists(t, output)

	_, code = execute(t, "gen", "--config", cfg, "--package", "vetted", "--output", output, "--allow-vulnerable")
	assert.Equal(t, exitSafe, code)
	src, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(src), "Backtracking analysis: EDA.")
}

func TestGenErrors(t *testing.T) {
	cfg := writeFile(t, "redos.yaml", genConfig)

	tests := []struct {
		name string
		args []string
	}{
		{"no config", []string{"gen", "--package", "p"}},
		{"nonprecise", []string{"gen", "-c", cfg, "-p", "p", "--preprocessing", "nonprecise"}},
		{"test without output", []string{"gen", "-c", cfg, "-p", "p", "--with-test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, code := execute(t, tt.args...)
			assert.Equal(t, exitVulnerable, code)
		})
	}

	// A missing required flag is a usage error, not an exit code.
	_, code := execute(t, "gen", "-c", cfg)
	assert.Equal(t, -1, code)
}

func TestExitCode(t *testing.T) {
	safe := result{status: statusSafe}
	vuln := result{status: statusVulnerable, Failed: true}
	expected := result{status: statusVulnerable, Failed: false}
	broken := result{status: statusError, Failed: true}

	tests := []struct {
		name    string
		results []result
		want    int
	}{
		{"empty", nil, exitSafe},
		{"all safe", []result{safe, safe}, exitSafe},
		{"vulnerable", []result{safe, vuln}, exitVulnerable},
		{"expected vulnerable", []result{expected}, exitSafe},
		{"error wins", []result{vuln, broken}, exitInconclusive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.results))
		})
	}
}

func TestResultExpect(t *testing.T) {
	r := newResult("", "x", nil, errors.New("boom"))
	r.expect(config.ExpectSafe)
	assert.True(t, r.Failed)
	assert.Empty(t, r.Expect)
}

func TestExitErrorMessage(t *testing.T) {
	assert.Equal(t, "exit status 1", (&exitError{code: 1}).Error())
	cause := errors.New("cause")
	err := &exitError{code: 2, err: cause}
	assert.Equal(t, "cause", err.Error())
	assert.ErrorIs(t, err, cause)
}
