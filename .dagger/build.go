package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/folio/internal/dagger"
)

// Build and return directory of go binaries
func (f *Folio) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// CGO builds run natively per platform instead of cross compiling
	goarches := []string{"amd64", "arm64"}

	// create empty directory to put build artifacts
	outputs := dag.Directory()

	for _, goarch := range goarches {
		path := fmt.Sprintf("linux/%s/", goarch)

		build := f.goContainer(dagger.Platform("linux/"+goarch)).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/folio"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	// return build directory
	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (f *Folio) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now().UTC().Format(time.RFC3339)

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/folio/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/folio/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/folio/pkg/utils.Buildtime=%s'", buildtime),
	}

	return f.Build(ctx, strings.Join(ldflags, " "))
}
