// Package foliocmder
package foliocmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/folio/cmd/folio/config"
	ingestcmder "github.com/papercomputeco/folio/cmd/folio/ingest"
	searchcmder "github.com/papercomputeco/folio/cmd/folio/search"
	servecmder "github.com/papercomputeco/folio/cmd/folio/serve"
	versioncmder "github.com/papercomputeco/folio/cmd/folio/version"
	watchcmder "github.com/papercomputeco/folio/cmd/folio/watch"
)

const folioLongDesc string = `Folio ingests course materials and serves semantic search over them.

Documents are split into chunks, embedded and stored alongside their
metadata. Queries return the best matching documents with the passages
that matched.

Commands:
  folio serve            Run the API server (with the MCP endpoint)
  folio ingest <file>    Ingest one file as a new document
  folio watch <dir>      Keep a directory of materials ingested
  folio search <query>   Search through a running API server
  folio config           Manage persistent configuration`

const folioShortDesc string = "Folio - course material search"

func NewFolioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "folio",
		Short:         folioShortDesc,
		Long:          folioLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .folio directory holding config.toml and the database")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
