package compiler

import (
	"bytes"
	"regexp/syntax"
	"strings"
	"sync"
	"testing"
)

func TestDetectNestedQuantifiers(t *testing.T) {
	tests := []struct {
		pattern     string
		hasNested   bool
		description string
	}{
		// Patterns WITH nested quantifiers (catastrophic backtracking risk)
		{`(a+)+`, true, "plus inside plus"},
		{`(a+)+b`, true, "plus inside plus with suffix"},
		{`(a*)*`, true, "star inside star"},
		{`(a*)*b`, true, "star inside star with suffix"},
		{`(a?)+`, true, "optional inside plus"},
		{`(a+)*`, true, "plus inside star"},
		{`(a{2,})+`, true, "repeat inside plus"},
		{`((a+)+)`, true, "nested groups with nested quantifiers"},
		{`(a|b+)+`, true, "alternation with nested quantifiers"},
		{`(x+x+)+y`, true, "multiple plus with outer plus"},

		// Patterns WITHOUT nested quantifiers
		{`a+b`, false, "simple plus"},
		{`a*b`, false, "simple star"},
		{`(a+)b`, false, "capture with plus, no nesting"},
		{`(ab)+`, false, "capture repeated, no nested quantifier"},
		{`a+b+c+`, false, "sequential quantifiers"},
		{`(a)(b)+`, false, "capture followed by repeated capture"},
		{`\d{4}-\d{2}-\d{2}`, false, "date pattern"},
		{`\w+@\w+\.\w+`, false, "simple email pattern"},
		{`(foo|bar)+`, false, "alternation repeated, no nested quantifier"},
		{`(?:a|b)+`, false, "non-capturing group repeated"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			re, err := syntax.Parse(tt.pattern, syntax.Perl)
			if err != nil {
				t.Fatalf("failed to parse pattern %q: %v", tt.pattern, err)
			}

			hasNested := detectNestedQuantifiers(re)
			if hasNested != tt.hasNested {
				t.Errorf("pattern %q: detectNestedQuantifiers = %v, want %v",
					tt.pattern, hasNested, tt.hasNested)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	t.Run("disabled logger produces no output", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(false)
		logger.SetOutput(&buf)

		logger.Log("test message")
		logger.Section("test section")

		if buf.Len() != 0 {
			t.Errorf("disabled logger produced output: %s", buf.String())
		}
	})

	t.Run("enabled logger produces output", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(true)
		logger.SetOutput(&buf)

		logger.Log("test message")
		logger.Section("test section")

		output := buf.String()
		if output == "" {
			t.Error("enabled logger produced no output")
		}
		if !bytes.Contains([]byte(output), []byte("test message")) {
			t.Errorf("output missing 'test message': %s", output)
		}
		if !bytes.Contains([]byte(output), []byte("test section")) {
			t.Errorf("output missing 'test section': %s", output)
		}
	})

	t.Run("shared logger keeps lines whole", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(true)
		logger.SetOutput(&buf)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				logger.Log("worker %d done", i)
			}(i)
		}
		wg.Wait()

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 8 {
			t.Fatalf("got %d lines, want 8:\n%s", len(lines), buf.String())
		}
		for _, line := range lines {
			if !strings.Contains(line, "worker") || !strings.HasSuffix(line, "done") {
				t.Errorf("interleaved line %q", line)
			}
		}
	})
}

func TestCompilerVerboseLogging(t *testing.T) {
	t.Run("verbose mode logs compilation", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(true)
		logger.SetOutput(&buf)

		compiler := New(Config{
			Pattern: `(a+)+b`,
			Mode:    ModeProgram,
			Logger:  logger,
		})
		if _, err := compiler.Compile(); err != nil {
			t.Fatalf("compile failed: %v", err)
		}

		output := buf.String()
		if !bytes.Contains([]byte(output), []byte("Pattern Compilation")) {
			t.Errorf("missing Pattern Compilation section in verbose output")
		}
		if !bytes.Contains([]byte(output), []byte("Has nested quantifiers: true")) {
			t.Errorf("missing nested quantifier hint in verbose output: %s", output)
		}
	})
}

func TestRepeatingCaptureDetection(t *testing.T) {
	tests := []struct {
		pattern      string
		hasRepeating bool
		description  string
	}{
		{`(\w)*`, true, "star quantifier on capture"},
		{`(\w)+`, true, "plus quantifier on capture"},
		{`(\w)?`, true, "optional capture"},
		{`(\w){3}`, true, "fixed repeat on capture"},
		{`(\w){2,5}`, true, "range repeat on capture"},
		{`(?P<word>\w)+`, true, "named repeating capture"},
		{`(\w)(\d)+`, true, "one normal, one repeating"},
		{`(\w+)`, false, "non-repeating capture with repeating content"},
		{`((\w)+)`, true, "nested repeating capture"},
		{`(\w)(\d)`, false, "two normal captures"},
		{`a(\w)b`, false, "single capture no repeat"},
		{`(?:(\w)+)`, true, "repeating capture in non-capturing group"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			re, err := syntax.Parse(tt.pattern, syntax.Perl)
			if err != nil {
				t.Fatalf("failed to parse pattern %q: %v", tt.pattern, err)
			}

			hasRepeating := hasRepeatingCaptures(re)
			if hasRepeating != tt.hasRepeating {
				t.Errorf("pattern %q: hasRepeatingCaptures = %v, want %v",
					tt.pattern, hasRepeating, tt.hasRepeating)
			}
		})
	}
}
