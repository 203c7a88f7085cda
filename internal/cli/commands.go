package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/models"
)

// reportErr prints a failure in user terms; callers return nil afterwards
// so the REPL keeps running.
func (a *App) reportErr(err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		fmt.Fprintln(a.out, "Not found.")
	case errors.Is(err, common.ErrValidation):
		fmt.Fprintln(a.out, "Invalid input:", err)
	case errors.Is(err, common.ErrDecryption):
		fmt.Fprintln(a.out, "Cannot decrypt this item. Wrong key or corrupt data.")
	case errors.Is(err, common.ErrAuthentication):
		fmt.Fprintln(a.out, "Wrong password.")
	case errors.Is(err, common.ErrLocked):
		fmt.Fprintln(a.out, "Store is locked.")
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
}

func (a *App) printNotes(notes []models.Note) {
	if len(notes) == 0 {
		fmt.Fprintln(a.out, "(no notes)")
		return
	}
	for _, n := range notes {
		marker := " "
		if n.IsFavorite {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s %s  %s  (modified %s)\n",
			marker, n.ID, n.Title, n.ModifiedAt.Local().Format("2006-01-02 15:04"))
	}
}

func (a *App) NewNote(ctx context.Context) error {
	title, err := GetSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	body, err := GetMultiline(a.reader, "Body", a.out)
	if err != nil {
		return err
	}

	n, err := a.manager.CreateNote(ctx, title, body, nil)
	if err != nil {
		a.reportErr(err)
		return nil
	}
	fmt.Fprintln(a.out, "Created", n.ID)
	return nil
}

func (a *App) List(ctx context.Context) error {
	notes, err := a.manager.ListAll(ctx)
	if err != nil {
		a.reportErr(err)
		return nil
	}
	a.printNotes(notes)
	return nil
}

func (a *App) ListFavorites(ctx context.Context) error {
	notes, err := a.manager.ListFavorites(ctx)
	if err != nil {
		a.reportErr(err)
		return nil
	}
	a.printNotes(notes)
	return nil
}

func (a *App) ListTrash(ctx context.Context) error {
	notes, err := a.manager.ListTrash(ctx)
	if err != nil {
		a.reportErr(err)
		return nil
	}
	a.printNotes(notes)
	return nil
}

func (a *App) Show(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Note id", a.out)
	if err != nil {
		return err
	}
	n, err := a.manager.GetNote(ctx, id)
	if err != nil {
		a.reportErr(err)
		return nil
	}

	fmt.Fprintf(a.out, "# %s\n%s\n", n.Title, n.Body)

	atts, err := a.manager.ListAttachments(ctx, n.ID)
	if err == nil && len(atts) > 0 {
		fmt.Fprintln(a.out, "Attachments:")
		for _, att := range atts {
			fmt.Fprintf(a.out, "  %s  %s (%d bytes)\n", att.ID, att.OriginalName, att.SizeBytes)
		}
	}

	tags, err := a.manager.TagsForNote(ctx, n.ID)
	if err == nil && len(tags) > 0 {
		names := make([]string, len(tags))
		for i, t := range tags {
			names[i] = t.Name
		}
		fmt.Fprintln(a.out, "Tags:", strings.Join(names, ", "))
	}
	return nil
}

func (a *App) Edit(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Note id", a.out)
	if err != nil {
		return err
	}
	n, err := a.manager.GetNote(ctx, id)
	if err != nil {
		a.reportErr(err)
		return nil
	}

	title, err := GetSimpleText(a.reader, fmt.Sprintf("Title [%s]", n.Title), a.out)
	if err != nil {
		return err
	}
	if title == "" {
		title = n.Title
	}
	body, err := GetMultiline(a.reader, "Body (replaces current)", a.out)
	if err != nil {
		return err
	}

	// Edits go through the autosaver so rapid re-edits coalesce.
	a.autosaver.Queue(n.ID, title, body)
	fmt.Fprintln(a.out, "Queued for save.")
	return nil
}

func (a *App) Delete(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Note id to trash", a.out)
	if err != nil {
		return err
	}
	if err := a.manager.DeleteNote(ctx, id); err != nil {
		a.reportErr(err)
		return nil
	}
	fmt.Fprintln(a.out, "Moved to trash.")
	return nil
}

func (a *App) Restore(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Note id to restore", a.out)
	if err != nil {
		return err
	}
	if err := a.manager.RestoreNote(ctx, id); err != nil {
		a.reportErr(err)
		return nil
	}
	fmt.Fprintln(a.out, "Restored.")
	return nil
}

func (a *App) Purge(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Note id to purge permanently", a.out)
	if err != nil {
		return err
	}
	confirm, err := GetSimpleText(a.reader, "This cannot be undone. Type yes to confirm", a.out)
	if err != nil {
		return err
	}
	if confirm != "yes" {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}
	if err := a.manager.PurgeNote(ctx, id); err != nil {
		a.reportErr(err)
		return nil
	}
	fmt.Fprintln(a.out, "Purged.")
	return nil
}

func (a *App) Search(ctx context.Context) error {
	query, err := GetSimpleText(a.reader, "Search for", a.out)
	if err != nil {
		return err
	}
	notes, err := a.manager.Search(ctx, query)
	if err != nil {
		a.reportErr(err)
		return nil
	}
	a.printNotes(notes)
	return nil
}

func (a *App) ToggleFavorite(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Note id", a.out)
	if err != nil {
		return err
	}
	favorite, err := a.manager.ToggleFavorite(ctx, id)
	if err != nil {
		a.reportErr(err)
		return nil
	}
	if favorite {
		fmt.Fprintln(a.out, "Favorited.")
	} else {
		fmt.Fprintln(a.out, "Unfavorited.")
	}
	return nil
}

func (a *App) Folders(ctx context.Context) error {
	folders, err := a.manager.ListFolders(ctx)
	if err != nil {
		a.reportErr(err)
		return nil
	}
	if len(folders) == 0 {
		fmt.Fprintln(a.out, "(no folders)")
		return nil
	}
	for _, f := range folders {
		fmt.Fprintf(a.out, "%s  %s\n", f.ID, f.Name)
	}
	return nil
}

func (a *App) NewFolder(ctx context.Context) error {
	name, err := GetSimpleText(a.reader, "Folder name", a.out)
	if err != nil {
		return err
	}
	f, err := a.manager.CreateFolder(ctx, name)
	if err != nil {
		a.reportErr(err)
		return nil
	}
	fmt.Fprintln(a.out, "Created folder", f.ID)
	return nil
}

func (a *App) Move(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Note id", a.out)
	if err != nil {
		return err
	}
	folderID, err := GetSimpleText(a.reader, "Folder id (empty for All Notes)", a.out)
	if err != nil {
		return err
	}

	var target *string
	if folderID != "" {
		target = &folderID
	}
	if err := a.manager.MoveNoteToFolder(ctx, id, target); err != nil {
		a.reportErr(err)
		return nil
	}
	fmt.Fprintln(a.out, "Moved.")
	return nil
}

func (a *App) Attach(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Note id", a.out)
	if err != nil {
		return err
	}
	path, err := GetSimpleText(a.reader, "File path", a.out)
	if err != nil {
		return err
	}
	att, err := a.manager.AddAttachment(ctx, id, path)
	if err != nil {
		a.reportErr(err)
		return nil
	}
	fmt.Fprintln(a.out, "Attached", att.ID)
	return nil
}

func (a *App) OpenAttachment(ctx context.Context) error {
	id, err := GetSimpleText(a.reader, "Attachment id", a.out)
	if err != nil {
		return err
	}
	path, err := a.manager.OpenAttachment(ctx, id)
	if err != nil {
		a.reportErr(err)
		return nil
	}
	fmt.Fprintln(a.out, "Decrypted copy at", path)
	fmt.Fprintln(a.out, "The copy is removed when you exit.")
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	written, err := a.mirror.SyncOnce(ctx)
	if err != nil {
		a.reportErr(err)
		return nil
	}
	fmt.Fprintf(a.out, "Mirror refreshed, %d note(s) written.\n", written)
	return nil
}

func (a *App) ChangePasswordCmd(ctx context.Context) error {
	if err := a.changePassword(ctx); err != nil {
		a.reportErr(err)
	}
	return nil
}

func (a *App) LockCmd(ctx context.Context) error {
	a.autosaver.Flush(ctx)
	a.manager.Lock()
	a.unlocked = false
	fmt.Fprintln(a.out, "Locked.")
	return a.promptUnlock()
}
