package main

import (
	"context"
	"fmt"

	"dagger/folio/internal/dagger"
)

const golangciLintVersion = "v2.8.0"

// lintOpts returns the common GolangcilintOpts used by both CheckLint and FixLint.
// It layers golangci-lint on top of goContainer so the sqlite dev headers,
// CGO, and Go caches are already in place.
func (f *Folio) lintOpts() dagger.GolangcilintOpts {
	base := f.goContainer("").
		WithExec([]string{
			"go",
			"install",
			fmt.Sprintf("github.com/golangci/golangci-lint/v2/cmd/golangci-lint@%s", golangciLintVersion),
		})

	return dagger.GolangcilintOpts{
		BaseCtr: base,
		Config:  f.Source.File(".golangci.yml"),
	}
}

// CheckLint runs golangci-lint against the folio source code without applying fixes.
func (f *Folio) CheckLint(ctx context.Context) (string, error) {
	return dag.Golangcilint(f.Source, f.lintOpts()).Check(ctx)
}

// FixLint runs golangci-lint against the folio source code with --fix, applying
// automatic fixes where possible, and returns the modified source directory.
func (f *Folio) FixLint(ctx context.Context) *dagger.Directory {
	return dag.Golangcilint(f.Source, f.lintOpts()).Lint()
}
