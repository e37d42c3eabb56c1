// Package servecmder provides the serve command that runs the folio API
// server with its MCP endpoint and background ingestion workers.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/folio/api"
	"github.com/papercomputeco/folio/api/mcp"
	"github.com/papercomputeco/folio/cmd/folio/stack"
	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/ingest/worker"
)

type ServeCommander struct {
	settings stack.Settings
	noMCP    bool
	debug    bool
	logger   *slog.Logger
}

const serveLongDesc string = `Run the folio API server.

The server exposes document management, ingestion and search under /v1 and
a Model Context Protocol endpoint under /mcp for agents. Asynchronous
ingestion requests are processed by a pool of background workers.

Examples:
  folio serve
  folio serve --listen :9000 --storage-provider postgres --postgres-dsn postgres://...
  folio serve --vector-store-provider qdrant --vector-store-target localhost:6334
  folio serve --no-mcp`

const serveShortDesc string = "Run the folio API server"

var serveFlags = append([]string{
	config.FlagAPIListen,
	config.FlagChunkSize,
	config.FlagIngestPolicy,
	config.FlagWorkers,
	config.FlagTopK,
	config.FlagGroupCap,
	config.FlagSearchMode,
}, stack.StorageFlags...)

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.settings, err = stack.Load(cmd, serveFlags...)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	var (
		listen, policy, mode               string
		chunkSize, workers, topK, capacity uint
	)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &listen)
	config.AddUintFlag(cmd, config.Flags, config.FlagChunkSize, &chunkSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagIngestPolicy, &policy)
	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &workers)
	config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &topK)
	config.AddUintFlag(cmd, config.Flags, config.FlagGroupCap, &capacity)
	config.AddStringFlag(cmd, config.Flags, config.FlagSearchMode, &mode)
	stack.AddStorageFlags(cmd)

	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Disable the MCP endpoint")

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.logger = stack.NewLogger(c.debug)

	st, err := stack.Open(ctx, c.settings, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			c.logger.Error("failed to close stores", "error", err)
		}
	}()

	pool, err := worker.NewPool(&worker.Config{
		Pipeline:   st.Pipeline,
		NumWorkers: c.settings.Workers,
		QueueSize:  c.settings.QueueSize,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Close()

	mcpServer, err := mcp.NewServer(mcp.Config{
		Engine:    st.Engine,
		Documents: st.Documents,
		Noop:      c.noMCP,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	apiConfig := api.Config{
		ListenAddr: c.settings.APIListen,
		ChunkSize:  c.settings.ChunkSize,
		SearchMode: c.settings.SearchMode,
		Documents:  st.Documents,
		Chunks:     st.Chunks,
		Pipeline:   st.Pipeline,
		Engine:     st.Engine,
		Pool:       pool,
	}
	if !c.noMCP {
		apiConfig.MCPHandler = mcpServer.Handler()
	}

	server, err := api.NewServer(apiConfig, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	c.logger.Info("starting api server",
		"listen", c.settings.APIListen,
		"mcp", !c.noMCP,
		"workers", c.settings.Workers,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}
