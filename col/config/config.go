package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"

	"github.com/pingcap-incubator/tinycol/log"
)

const (
	MergeStrategyLogarithmic = "logarithmic"
	MergeStrategyNever       = "never"
)

type Config struct {
	LogLevel string `toml:"log-level"`
	// Optional log file. Logs go to stderr when empty.
	LogFile      string `toml:"log-file"`
	LogMaxSizeMB int    `toml:"log-max-size-mb"`

	Merge MergeConfig `toml:"merge"`
	Txn   TxnConfig   `toml:"txn"`

	// Messages produced while loading the config file, logged once the logger is set up.
	WarningMsgs []string `toml:"-"`
}

// MergeConfig controls when and how delta regions are consolidated into main partitions.
type MergeConfig struct {
	// Strategy is one of "logarithmic" or "never".
	Strategy string `toml:"strategy"`
	// MinDeltaRows is a floor for the logarithmic threshold.
	MinDeltaRows uint64 `toml:"min-delta-rows"`
	// Compressed makes the merger dictionary-encode the columns of new main partitions.
	Compressed bool `toml:"compressed"`
	// AfterCommit runs the merge check as a side effect of every commit.
	AfterCommit bool `toml:"after-commit"`
	// Background moves post-commit merges onto a worker goroutine.
	Background bool `toml:"background"`
}

type TxnConfig struct {
	// FirstTxnID is the first transaction id handed out by the manager. Ids below it are free for bulk loads.
	FirstTxnID uint64 `toml:"first-txn-id"`
}

func (c *Config) Validate() error {
	switch c.Merge.Strategy {
	case MergeStrategyLogarithmic, MergeStrategyNever:
	default:
		return fmt.Errorf("unknown merge strategy %q", c.Merge.Strategy)
	}

	if c.Txn.FirstTxnID == 0 {
		return fmt.Errorf("first txn id must be greater than 0, 0 is reserved for bootstrap rows")
	}

	if c.Merge.Background && !c.Merge.AfterCommit {
		log.Warnf("merge.background has no effect unless merge.after-commit is set")
	}

	return nil
}

// Adjust fills zero values with defaults. meta may be nil when the config did not come from a file.
func (c *Config) Adjust(meta *toml.MetaData) {
	def := NewDefaultConfig()
	adjustString(&c.LogLevel, def.LogLevel)
	adjustString(&c.Merge.Strategy, def.Merge.Strategy)
	if c.Txn.FirstTxnID == 0 {
		c.Txn.FirstTxnID = def.Txn.FirstTxnID
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = def.LogMaxSizeMB
	}
	if meta == nil {
		return
	}
	// Booleans default to true, so only an explicit "false" in the file may turn them off.
	if !meta.IsDefined("merge", "after-commit") {
		c.Merge.AfterCommit = def.Merge.AfterCommit
	}
	for _, key := range meta.Undecoded() {
		c.WarningMsgs = append(c.WarningMsgs, fmt.Sprintf("config contains unknown key %q", key.String()))
	}
}

// LogConfig converts the logging part of the config for log.Init.
func (c *Config) LogConfig() log.Config {
	return log.Config{
		Level: c.LogLevel,
		File:  log.FileConfig{Filename: c.LogFile, MaxSizeMB: c.LogMaxSizeMB},
	}
}

func adjustString(v *string, defValue string) {
	if len(*v) == 0 {
		*v = defValue
	}
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

// FromFile decodes a TOML file on top of the default config.
func FromFile(path string) (*Config, error) {
	c := &Config{}
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.Annotatef(err, "decode config %s", path)
	}
	c.Adjust(&meta)
	if err := c.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return c, nil
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:     getLogLevel(),
		LogMaxSizeMB: 300,
		Merge: MergeConfig{
			Strategy:     MergeStrategyLogarithmic,
			MinDeltaRows: 0,
			Compressed:   false,
			AfterCommit:  true,
			Background:   false,
		},
		Txn: TxnConfig{
			FirstTxnID: 1,
		},
	}
}

func NewTestConfig() *Config {
	return &Config{
		LogLevel: getLogLevel(),
		Merge: MergeConfig{
			Strategy:     MergeStrategyLogarithmic,
			MinDeltaRows: 0,
			AfterCommit:  true,
		},
		Txn: TxnConfig{
			FirstTxnID: 1,
		},
	}
}
