package codegen

import (
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/dave/jennifer/jen"
)

// Entry is one vetted pattern.
type Entry struct {
	Name    string
	Pattern string
	// Verdict is the analysis result recorded in the doc comment
	Verdict string
}

// Options configures generation.
type Options struct {
	Package string
	// Source names the file the patterns came from, for the header
	Source string
}

// Generate builds a file declaring one *regexp.Regexp per entry and a
// Patterns map from name to regexp. Identifiers are made unique by
// appending a counter.
func Generate(opts Options, entries []Entry) (*jen.File, error) {
	if opts.Package == "" {
		return nil, errors.New("package cannot be empty")
	}

	f := jen.NewFile(opts.Package)
	f.HeaderComment("Code generated by redos gen. DO NOT EDIT.")
	if opts.Source != "" {
		f.HeaderComment(fmt.Sprintf("Source: %s", opts.Source))
	}

	names := uniqueNames(entries)
	var vars []jen.Code
	dict := jen.Dict{}
	for i, e := range entries {
		if _, err := regexp.Compile(e.Pattern); err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, names[i], err)
		}
		vars = append(vars, jen.Comment(fmt.Sprintf("%s matches %s", names[i], e.Pattern)))
		if e.Verdict != "" {
			vars = append(vars, jen.Comment(fmt.Sprintf("Backtracking analysis: %s.", e.Verdict)))
		}
		vars = append(vars,
			jen.Id(names[i]).Op("=").Qual(RegexpPackage, MustCompileName).Call(jen.Lit(e.Pattern)),
		)
		dict[jen.Lit(names[i])] = jen.Id(names[i])
	}
	if len(vars) > 0 {
		f.Var().Defs(vars...)
		f.Line()
	}

	f.Comment(fmt.Sprintf("%s maps each name to its compiled pattern.", PatternsName))
	f.Var().Id(PatternsName).Op("=").Map(jen.String()).Op("*").Qual(RegexpPackage, "Regexp").Values(dict)
	return f, nil
}

// GenerateTest builds a test file checking that every generated variable
// still holds its pattern.
func GenerateTest(opts Options, entries []Entry) *jen.File {
	f := jen.NewFile(opts.Package)
	f.HeaderComment("Code generated by redos gen. DO NOT EDIT.")

	names := uniqueNames(entries)
	for i, e := range entries {
		f.Func().Id("Test"+names[i]+"Pattern").Params(jen.Id("t").Op("*").Qual("testing", "T")).Block(
			jen.If(jen.Id(names[i]).Dot("String").Call().Op("!=").Lit(e.Pattern)).Block(
				jen.Id("t").Dot("Errorf").Call(jen.Lit("pattern = %q, want %q"), jen.Id(names[i]).Dot("String").Call(), jen.Lit(e.Pattern)),
			),
		)
		f.Line()
	}
	return f
}

// Write renders the file to w.
func Write(w io.Writer, f *jen.File) error {
	if err := f.Render(w); err != nil {
		return fmt.Errorf("failed to render file: %w", err)
	}
	return nil
}

func uniqueNames(entries []Entry) []string {
	names := make([]string, len(entries))
	used := make(map[string]int)
	for i, e := range entries {
		name := Identifier(e.Name, i)
		if name == PatternsName {
			name = DefaultPrefix + name
		}
		if n := used[name]; n > 0 {
			used[name] = n + 1
			name = fmt.Sprintf("%s%d", name, n+1)
		}
		used[name]++
		names[i] = name
	}
	return names
}
