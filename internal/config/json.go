package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/encnotes/mathnotes/internal/flagx"
	"github.com/encnotes/mathnotes/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "2s"
// or as integer nanoseconds.
type JsonConfig struct {
	DataDir          string          `json:"data_dir"`
	AutosaveDebounce *timex.Duration `json:"autosave_debounce"`
	SyncInterval     *timex.Duration `json:"sync_interval"`
	UseKeyring       *bool           `json:"use_keyring"`
	LogLevel         string          `json:"log_level"`
}

// parseJson overlays Config with values from the JSON file named by the
// -c/-config flags. No flag, no overlay. Absent JSON fields leave the
// current value alone. Panics on a present-but-unreadable file: a config
// the user pointed at explicitly must not be silently skipped.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.AutosaveDebounce != nil {
		cfg.AutosaveDebounce = time.Duration(jc.AutosaveDebounce.Duration)
	}
	if jc.SyncInterval != nil {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.UseKeyring != nil {
		cfg.UseKeyring = *jc.UseKeyring
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
}
