package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it
// with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a stub.
type execIface interface {
	isUnlocked() bool
	NewNote(ctx context.Context) error
	List(ctx context.Context) error
	ListFavorites(ctx context.Context) error
	ListTrash(ctx context.Context) error
	Show(ctx context.Context) error
	Edit(ctx context.Context) error
	Delete(ctx context.Context) error
	Restore(ctx context.Context) error
	Purge(ctx context.Context) error
	Search(ctx context.Context) error
	ToggleFavorite(ctx context.Context) error
	Folders(ctx context.Context) error
	NewFolder(ctx context.Context) error
	Move(ctx context.Context) error
	Attach(ctx context.Context) error
	OpenAttachment(ctx context.Context) error
	Sync(ctx context.Context) error
	ChangePasswordCmd(ctx context.Context) error
	LockCmd(ctx context.Context) error
}

// runREPL reads a command per line and dispatches to a. Unknown commands
// are reported back. The loop exits on scanner EOF or "exit"/"quit".
// Handlers print their own errors; the loop stays up regardless.
func runREPL(ctx context.Context, a execIface, scanner *bufio.Scanner) {
	for {
		printlnFn("notes> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		if !a.isUnlocked() {
			printlnFn("Store is locked.")
			return
		}

		switch parts[0] {
		case "help":
			printlnFn("Commands: new, (l)ist, favs, trash, show, edit, delete, restore, purge,")
			printlnFn("          search, fav, folders, newfolder, move, attach, open, sync,")
			printlnFn("          passwd, lock, exit")

		case "new":
			_ = a.NewNote(ctx)

		case "l", "list":
			_ = a.List(ctx)

		case "favs":
			_ = a.ListFavorites(ctx)

		case "trash":
			_ = a.ListTrash(ctx)

		case "show":
			_ = a.Show(ctx)

		case "edit":
			_ = a.Edit(ctx)

		case "delete":
			_ = a.Delete(ctx)

		case "restore":
			_ = a.Restore(ctx)

		case "purge":
			_ = a.Purge(ctx)

		case "search":
			_ = a.Search(ctx)

		case "fav":
			_ = a.ToggleFavorite(ctx)

		case "folders":
			_ = a.Folders(ctx)

		case "newfolder":
			_ = a.NewFolder(ctx)

		case "move":
			_ = a.Move(ctx)

		case "attach":
			_ = a.Attach(ctx)

		case "open":
			_ = a.OpenAttachment(ctx)

		case "sync":
			_ = a.Sync(ctx)

		case "passwd":
			_ = a.ChangePasswordCmd(ctx)

		case "lock":
			_ = a.LockCmd(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", parts[0])
		}
	}
}
