// Package configcmder provides the config command for managing persistent
// folio configuration stored in the .folio/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent folio configuration.

Configuration is stored as config.toml in the .folio/ directory and provides
default values for command flags. FOLIO_* environment variables override the
file, and CLI flags override both.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.sqlite_path, storage.postgres_dsn,
  vector_store.provider, vector_store.target, vector_store.collection,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  ingest.chunk_size, ingest.policy, ingest.workers,
  search.top_k, search.group_cap, search.mode,
  api.listen, client.api_target, events.provider, events.brokers

The embedding API key is never stored; set FOLIO_EMBEDDING_API_KEY instead.

Examples:
  folio config set embedding.provider openai
  folio config set ingest.policy all_or_nothing
  folio config get search.mode
  folio config list`

const configShortDesc string = "Manage persistent folio configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
