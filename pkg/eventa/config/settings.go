package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/deltaecho/eventa/pkg/eventa"
	"github.com/deltaecho/eventa/pkg/eventa/journal"
)

// Settings are the recognized bus construction options in plain data
// form, loadable from a config file or the environment.
type Settings struct {
	// ContextID is the explicit bus identity. Empty means
	// auto-generated.
	ContextID string `envconfig:"EVENTA_CONTEXT_ID"`

	// RPCTimeout is the default invoke timeout.
	RPCTimeout time.Duration `envconfig:"EVENTA_RPC_TIMEOUT" default:"30s"`

	// Debug enables verbose internal diagnostics.
	Debug bool `envconfig:"EVENTA_DEBUG" default:"false"`

	// JournalPath, when non-empty, points the traffic journal at a
	// SQLite file (":memory:" for an in-memory database).
	JournalPath string `envconfig:"EVENTA_JOURNAL_PATH"`
}

// FromEnv loads Settings from EVENTA_* environment variables.
func FromEnv() (Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Options converts the settings into bus construction options, ready to
// pass to eventa.New. A non-empty JournalPath opens a SQLite-backed
// traffic journal; the bus closes it on Close.
func (s Settings) Options() ([]eventa.Option, error) {
	opts := []eventa.Option{
		eventa.WithContextID(s.ContextID),
		eventa.WithRPCTimeout(s.RPCTimeout),
		eventa.WithDebug(s.Debug),
	}
	if s.JournalPath != "" {
		rec, err := journal.NewSQLiteRecorder(s.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("open journal %s: %w", s.JournalPath, err)
		}
		opts = append(opts, eventa.WithJournal(rec))
	}
	return opts, nil
}

// Settings extracts bus settings from a loaded Config. Recognized keys:
// context_id, rpc_timeout, debug, journal_path.
func (c Config) Settings() Settings {
	return Settings{
		ContextID:   c.String("context_id", ""),
		RPCTimeout:  c.Duration("rpc_timeout", 30*time.Second),
		Debug:       c.Bool("debug", false),
		JournalPath: c.String("journal_path", ""),
	}
}
