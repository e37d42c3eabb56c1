// Package watchcmder provides the watch command, which keeps a directory of
// course materials ingested.
package watchcmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/cmd/folio/stack"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/ingest/watcher"
)

type watchCommander struct {
	dir     string
	course  string
	docType string
	owner   string
	once    bool

	configDir string
	settings  stack.Settings
	debug     bool
	logger    *slog.Logger
}

const watchLongDesc string = `Keep a directory of course materials ingested.

Every supported file under the directory becomes a document of the given
course. Changed files replace their chunks under the same document and
removed files are deleted. Hidden files and directories are ignored.

Which files were ingested as which documents is recorded in the .folio
directory, so restarting the watcher only ingests what changed meanwhile.

Use --once to sync the directory and exit instead of following changes.

Examples:
  folio watch ./materials/cs101 --course CS101
  folio watch ./lectures --course CS102 --type lecture --owner prof-ada
  folio watch ./materials/cs101 --course CS101 --once`

const watchShortDesc string = "Keep a directory of materials ingested"

var watchFlags = append([]string{
	config.FlagChunkSize,
	config.FlagIngestPolicy,
	config.FlagWorkers,
}, stack.StorageFlags...)

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			var err error
			cmder.settings, err = stack.Load(cmd, watchFlags...)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.dir = args[0]

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

	cmd.Flags().StringVar(&cmder.course, "course", "", "Course code of the watched documents")
	cmd.Flags().StringVar(&cmder.docType, "type", "notes", "Document type of the watched documents")
	cmd.Flags().StringVar(&cmder.owner, "owner", "", "ID of the uploading user")
	cmd.Flags().BoolVar(&cmder.once, "once", false, "Sync the directory once and exit")
	_ = cmd.MarkFlagRequired("course")

	var (
		chunkSize, workers uint
		policy             string
	)
	config.AddUintFlag(cmd, config.Flags, config.FlagChunkSize, &chunkSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagIngestPolicy, &policy)
	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &workers)
	stack.AddStorageFlags(cmd)

	return cmd
}

func (c *watchCommander) run(ctx context.Context) error {
	c.logger = stack.NewLogger(c.debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := stack.Open(ctx, c.settings, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			c.logger.Error("failed to close stores", "error", err)
		}
	}()

	w, err := watcher.New(watcher.Config{
		Dir:        c.dir,
		Course:     c.course,
		Type:       c.docType,
		OwnerID:    c.owner,
		ChunkSize:  c.settings.ChunkSize,
		Documents:  st.Documents,
		Chunks:     st.Chunks,
		Pipeline:   st.Pipeline,
		StateDir:   c.configDir,
		NumWorkers: c.settings.Workers,
		QueueSize:  c.settings.QueueSize,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := w.Close(); err != nil {
			c.logger.Error("failed to save watch state", "error", err)
		}
	}()

	if c.once {
		queued, err := w.Sync(ctx)
		if err != nil {
			return err
		}
		w.Wait()
		c.logger.Info("directory synced", "dir", c.dir, "ingested", queued)
		return nil
	}

	if err := w.Run(ctx); err != nil {
		return err
	}
	c.logger.Info("stopping watcher, draining queued files")
	return nil
}
