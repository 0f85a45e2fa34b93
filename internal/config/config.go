// Package config loads pattern lists and analysis settings from disk.
package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/KromDaniel/redos/internal/analysis"
	"github.com/KromDaniel/redos/internal/compiler"
	"github.com/KromDaniel/redos/internal/preprocess"
	"github.com/KromDaniel/redos/pkg/redos"
)

// MaxFileSize bounds configuration and pattern files.
const MaxFileSize = 1 << 20

// ErrInvalid is returned for files that parse but fail validation.
var ErrInvalid = errors.New("invalid configuration file")

var validate = validator.New()

// Expectations a pattern entry can declare.
const (
	ExpectSafe       = "safe"
	ExpectVulnerable = "vulnerable"
)

// File is a parsed configuration file.
type File struct {
	Analysis Analysis  `yaml:"analysis"`
	Patterns []Pattern `yaml:"patterns" validate:"dive"`
	Server   Server    `yaml:"server"`
	Cache    Cache     `yaml:"cache"`
}

// Analysis mirrors redos.Config. Empty fields keep the builder's defaults.
type Analysis struct {
	Construction       string         `yaml:"construction" validate:"omitempty,oneof=program thompson"`
	Preprocessing      string         `yaml:"preprocessing" validate:"omitempty,oneof=none precise nonprecise"`
	EpsilonLoopRemoval string         `yaml:"epsilon_loop_removal" validate:"omitempty,oneof=merging flattening"`
	PriorityRemoval    string         `yaml:"priority_removal" validate:"omitempty,oneof=unprioritise preserve"`
	TestIDA            *bool          `yaml:"test_ida"`
	Timeout            *time.Duration `yaml:"timeout"`
	MaxStates          *int           `yaml:"max_states" validate:"omitempty,gte=0"`
	MaxProductNodes    *int           `yaml:"max_product_nodes" validate:"omitempty,gte=0"`
}

// Pattern is one entry of the pattern list.
type Pattern struct {
	// Name becomes the generated variable name
	Name    string `yaml:"name" validate:"omitempty,max=64"`
	Pattern string `yaml:"pattern" validate:"required"`
	// Expect fails a scan when the verdict differs
	Expect string `yaml:"expect" validate:"omitempty,oneof=safe vulnerable"`
}

// Server configures the HTTP service.
type Server struct {
	Addr            string        `yaml:"addr"`
	RateLimit       float64       `yaml:"rate_limit" validate:"gte=0"`
	Burst           int           `yaml:"burst" validate:"gte=0"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" validate:"gte=0"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout" validate:"gte=0"`
}

// Cache configures the verdict cache.
type Cache struct {
	Dir string        `yaml:"dir"`
	TTL time.Duration `yaml:"ttl" validate:"gte=0"`
}

// Load reads path. Files ending in .yaml or .yml are parsed as
// configuration; anything else is a plain list of patterns.
func Load(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return Parse(data)
	}
	return &File{Patterns: ParsePatterns(data)}, nil
}

// Parse decodes and validates a YAML configuration.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshaling YAML: %w", err)
	}
	f.normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParsePatterns reads one pattern per line, skipping blank lines and lines
// starting with '#'.
func ParsePatterns(data []byte) []Pattern {
	var patterns []Pattern
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), MaxFileSize)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, Pattern{Pattern: line})
	}
	return patterns
}

func (f *File) normalize() {
	a := &f.Analysis
	for _, s := range []*string{&a.Construction, &a.Preprocessing, &a.EpsilonLoopRemoval, &a.PriorityRemoval} {
		*s = strings.ToLower(strings.TrimSpace(*s))
	}
	a.Preprocessing = strings.NewReplacer("_", "", "-", "").Replace(a.Preprocessing)
	a.PriorityRemoval = strings.ReplaceAll(a.PriorityRemoval, "prioritize", "prioritise")
	for i := range f.Patterns {
		f.Patterns[i].Expect = strings.ToLower(strings.TrimSpace(f.Patterns[i].Expect))
	}
}

// Validate checks field constraints.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Apply copies the set fields onto b.
func (a Analysis) Apply(b *redos.Builder) error {
	if a.Construction != "" {
		m, err := compiler.ParseMode(a.Construction)
		if err != nil {
			return err
		}
		b.WithConstruction(m)
	}
	if a.Preprocessing != "" {
		t, err := preprocess.ParseType(a.Preprocessing)
		if err != nil {
			return err
		}
		b.WithPreprocessing(t)
	}
	if a.EpsilonLoopRemoval != "" {
		s, err := analysis.ParseLoopStrategy(a.EpsilonLoopRemoval)
		if err != nil {
			return err
		}
		b.WithEpsilonLoopRemoval(s)
	}
	if a.PriorityRemoval != "" {
		s, err := analysis.ParsePriorityStrategy(a.PriorityRemoval)
		if err != nil {
			return err
		}
		b.WithPriorityRemoval(s)
	}
	if a.TestIDA != nil {
		b.WithIDA(*a.TestIDA)
	}
	if a.Timeout != nil {
		b.WithTimeoutDuration(*a.Timeout)
	}
	if a.MaxStates != nil {
		b.WithMaxStates(*a.MaxStates)
	}
	if a.MaxProductNodes != nil {
		b.WithMaxProductNodes(*a.MaxProductNodes)
	}
	return nil
}
