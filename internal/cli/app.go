// Package cli is the interactive front end of the note store: a small
// REPL over the note manager, plus the unlock flow and the background
// mirror refresh.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/encnotes/mathnotes/internal/attachmentstore"
	"github.com/encnotes/mathnotes/internal/config"
	"github.com/encnotes/mathnotes/internal/keymanager"
	"github.com/encnotes/mathnotes/internal/logging"
	"github.com/encnotes/mathnotes/internal/migrations"
	"github.com/encnotes/mathnotes/internal/notemanager"
	"github.com/encnotes/mathnotes/internal/syncmirror"

	_ "modernc.org/sqlite"
)

type App struct {
	config    *config.Config
	manager   *notemanager.Manager
	autosaver *notemanager.Autosaver
	mirror    *syncmirror.Mirror
	log       logging.Logger

	reader   *bufio.Reader
	out      io.Writer
	unlocked bool
}

// NewApp opens (or creates) the data directory and wires the full stack:
// database with migrations, key manager, attachment store, note manager,
// autosaver, and sync mirror.
func NewApp(cfg *config.Config, log logging.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	ctx := context.Background()

	db, err := sql.Open("sqlite", cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrations.Run(ctx, db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	var keyOpts []keymanager.Option
	if cfg.UseKeyring {
		keyOpts = append(keyOpts, keymanager.WithKeyring(keymanager.SystemKeyring{}))
	}
	keys := keymanager.New(cfg.KeyFilePath(), keyOpts...)

	blobs, err := attachmentstore.New(db, cfg.BlobDir(), log)
	if err != nil {
		return nil, err
	}

	manager := notemanager.NewManager(db, keys, blobs, log)

	autosaver := notemanager.NewAutosaver(cfg.AutosaveDebounce,
		func(ctx context.Context, id, title, body string) error {
			return manager.UpdateNote(ctx, id, title, body)
		}, log)

	mirror, err := syncmirror.New(manager, cfg.MirrorDir(), log,
		syncmirror.WithInterval(cfg.SyncInterval))
	if err != nil {
		return nil, err
	}

	return &App{
		config:    cfg,
		manager:   manager,
		autosaver: autosaver,
		mirror:    mirror,
		log:       log,
		reader:    bufio.NewReader(os.Stdin),
		out:       os.Stdout,
	}, nil
}

// Run drives the session: unlock, background mirror, REPL, cleanup.
func (a *App) Run(ctx context.Context) error {
	if err := a.setupOrUnlock(ctx); err != nil {
		return err
	}

	mirrorCtx, stopMirror := context.WithCancel(ctx)
	a.mirror.Start(mirrorCtx)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, scanner)

	stopMirror()
	a.autosaver.Flush(ctx)
	a.manager.Close()
	return nil
}

func (a *App) isUnlocked() bool {
	return a.unlocked
}
