// Package ingestcmder provides the ingest command, which extracts the text of
// one file and ingests it as a new document.
package ingestcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/cmd/folio/stack"
	"github.com/papercomputeco/folio/pkg/cliui"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/documents"
	"github.com/papercomputeco/folio/pkg/extract"
	"github.com/papercomputeco/folio/pkg/ingest"
)

type ingestCommander struct {
	path    string
	title   string
	course  string
	docType string
	owner   string

	settings stack.Settings
	debug    bool
	out      io.Writer
	logger   *slog.Logger
}

const ingestLongDesc string = `Ingest a file as a new document.

The file's text is extracted, split into chunks of at most --chunk-size
characters, embedded and stored. The document is created in the configured
document store and can be searched as soon as the command returns.

Supported files: .txt, .md, .markdown, .html, .htm

With the best_effort policy a document whose chunks only partly succeed is
kept and reported; with all_or_nothing any failure removes the document.

Examples:
  folio ingest week1.md --course CS101
  folio ingest lecture.html --course CS101 --type lecture --title "Recursion"
  folio ingest notes.txt --course CS101 --policy all_or_nothing`

const ingestShortDesc string = "Ingest a file as a new document"

var ingestFlags = append([]string{
	config.FlagChunkSize,
	config.FlagIngestPolicy,
}, stack.StorageFlags...)

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.settings, err = stack.Load(cmd, ingestFlags...)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.path = args[0]
			cmder.out = cmd.OutOrStdout()

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx)
		},
	}

	cmd.Flags().StringVar(&cmder.title, "title", "", "Document title (default: file name without extension)")
	cmd.Flags().StringVar(&cmder.course, "course", "", "Course code the document belongs to")
	cmd.Flags().StringVar(&cmder.docType, "type", "notes", "Document type (notes, lecture, assignment, ...)")
	cmd.Flags().StringVar(&cmder.owner, "owner", "", "ID of the uploading user")
	_ = cmd.MarkFlagRequired("course")

	var (
		chunkSize uint
		policy    string
	)
	config.AddUintFlag(cmd, config.Flags, config.FlagChunkSize, &chunkSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagIngestPolicy, &policy)
	stack.AddStorageFlags(cmd)

	return cmd
}

func (c *ingestCommander) run(ctx context.Context) error {
	c.logger = stack.NewLogger(c.debug)

	path, err := filepath.Abs(c.path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", c.path, err)
	}

	var text string
	err = cliui.Step(c.out, "Extracting text", func() error {
		text, err = extractText(ctx, path)
		return err
	})
	if err != nil {
		return err
	}

	st, err := stack.Open(ctx, c.settings, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			c.logger.Error("failed to close stores", "error", err)
		}
	}()

	title := c.title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	var doc documents.Document
	err = cliui.Step(c.out, "Creating document", func() error {
		doc, err = st.Documents.Create(ctx, documents.Document{
			Title:      title,
			CourseCode: c.course,
			Type:       c.docType,
			StorageURL: "file://" + path,
			OwnerID:    c.owner,
		})
		return err
	})
	if err != nil {
		return err
	}

	var created int
	ingestErr := cliui.Step(c.out, "Embedding chunks", func() error {
		created, err = st.Pipeline.Ingest(ctx, doc.ID, text, c.settings.ChunkSize)
		return err
	})

	var partial *ingest.PartialError
	switch {
	case errors.As(ingestErr, &partial):
		fmt.Fprintf(c.out, "\n  %s %s: %d chunks stored, %d failed\n",
			cliui.WarnMark, cliui.KeyStyle.Render("Partially ingested"), partial.Succeeded, partial.Failed)

	case ingestErr != nil:
		removeDocument(context.WithoutCancel(ctx), st, doc.ID, c.logger)
		return ingestErr
	}

	fmt.Fprintf(c.out, "\n  %s %s\n", cliui.KeyStyle.Render("Document:"), cliui.ValueStyle.Render(doc.ID))
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Course:  "), cliui.ValueStyle.Render(doc.CourseCode))
	fmt.Fprintf(c.out, "  %s %s\n\n", cliui.KeyStyle.Render("Chunks:  "), cliui.ValueStyle.Render(fmt.Sprint(created)))

	return nil
}

func extractText(ctx context.Context, path string) (string, error) {
	registry := extract.NewRegistry()
	if !registry.Supported(path) {
		return "", fmt.Errorf("unsupported file type %q (supported: %s)",
			filepath.Ext(path), strings.Join(registry.Extensions(), ", "))
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return registry.Extract(ctx, path, f)
}

// removeDocument deletes a document whose ingestion failed along with any
// chunks that were stored before the failure.
func removeDocument(ctx context.Context, st *stack.Stack, id string, logger *slog.Logger) {
	if _, err := st.Chunks.DeleteByDocument(ctx, id); err != nil {
		logger.Error("failed to delete chunks", "document_id", id, "error", err)
	}
	if err := st.Documents.Delete(ctx, id); err != nil {
		logger.Error("failed to delete document", "document_id", id, "error", err)
	}
}
