package stack

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/folio/pkg/config"
	"github.com/papercomputeco/folio/pkg/logger"
)

// StorageFlags are the registry keys shared by every command that opens the
// stores.
var StorageFlags = []string{
	config.FlagStorageProv,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagEventsProv,
	config.FlagKafkaBrokers,
}

// AddStorageFlags registers StorageFlags on cmd. Values are read back
// through viper, so the targets only back the flag definitions.
func AddStorageFlags(cmd *cobra.Command) {
	for _, key := range StorageFlags {
		if key == config.FlagEmbeddingDims {
			config.AddUintFlag(cmd, config.Flags, key, new(uint))
			continue
		}
		config.AddStringFlag(cmd, config.Flags, key, new(string))
	}
}

// Load resolves Settings for cmd from config.toml, FOLIO_* environment
// variables and the flags named by flagKeys, in increasing precedence.
func Load(cmd *cobra.Command, flagKeys ...string) (Settings, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return Settings{}, fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	return SettingsFromViper(v, configDir)
}

// NewLogger returns a colorized logger on terminals and a JSON logger
// otherwise. Logs go to stderr so command output stays pipeable.
func NewLogger(debug bool) *slog.Logger {
	pretty := term.IsTerminal(int(os.Stderr.Fd()))
	return logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(pretty),
		logger.WithJSON(!pretty),
		logger.WithWriter(os.Stderr),
	)
}
