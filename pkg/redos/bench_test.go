package redos

import (
	"context"
	"testing"
)

func BenchmarkAnalyze(b *testing.B) {
	benchmarks := []struct {
		name    string
		pattern string
	}{
		{"Safe", `ab*(\.ab*)*`},
		{"Nested", `^(a+)+$`},
		{"Email", emailPattern},
		{"Polynomial", `\d+\d+\d+`},
		{"Date", `^\d{4}-\d{2}-\d{2}$`},
	}

	for _, bm := range benchmarks {
		for _, loop := range []LoopStrategy{Flattening, Merging} {
			b.Run(bm.name+"/"+loop.String(), func(b *testing.B) {
				a, err := NewBuilder().WithEpsilonLoopRemoval(loop).Build()
				if err != nil {
					b.Fatal(err)
				}
				b.ReportAllocs()
				for b.Loop() {
					if _, err := a.Analyze(context.Background(), bm.pattern); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
