package config

import (
	"flag"
	"os"
	"time"

	"github.com/encnotes/mathnotes/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   data directory (default from Config)
//	-s int      sync interval in seconds (default from Config)
//	-k bool     use the platform keyring for unattended unlock
//
// The function filters os.Args to only the flags it knows about, via
// flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-s", "-k"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	syncInterval := fs.Int("s", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	fs.BoolVar(&cfg.UseKeyring, "k", cfg.UseKeyring, "use platform keyring for unattended unlock")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
