package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/encnotes/mathnotes/internal/common"
	"github.com/encnotes/mathnotes/internal/keymanager"
)

const maxUnlockAttempts = 3

// setupOrUnlock runs the entry flow: first-run password setup when no key
// file exists, otherwise an unattended keyring unlock with a password
// prompt as fallback.
func (a *App) setupOrUnlock(ctx context.Context) error {
	if !a.manager.IsInitialized() {
		return a.setupPassword()
	}

	if err := a.manager.AutoUnlock(); err == nil {
		fmt.Fprintln(a.out, "Unlocked from keyring.")
		a.unlocked = true
		return nil
	} else if !errors.Is(err, keymanager.ErrNoWrappedKey) {
		a.log.Warn(ctx, "auto unlock failed", "error", err)
	}

	return a.promptUnlock()
}

func (a *App) setupPassword() error {
	fmt.Fprintln(a.out, "No password set yet. Choose one to encrypt your notes.")

	pw, err := GetPassword("New password: ", a.out)
	if err != nil {
		return err
	}
	confirm, err := GetPassword("Repeat password: ", a.out)
	if err != nil {
		return err
	}
	if !bytes.Equal(pw, confirm) {
		common.WipeByteArray(pw)
		common.WipeByteArray(confirm)
		return fmt.Errorf("%w: passwords do not match", common.ErrValidation)
	}
	common.WipeByteArray(confirm)

	err = a.manager.SetupPassword(pw)
	common.WipeByteArray(pw)
	if err != nil {
		return err
	}
	a.unlocked = true
	fmt.Fprintln(a.out, "Password set.")
	return nil
}

// promptUnlock asks for the password, retrying on a wrong one up to
// maxUnlockAttempts before giving up.
func (a *App) promptUnlock() error {
	for attempt := 1; ; attempt++ {
		pw, err := GetPassword("Enter password: ", a.out)
		if err != nil {
			return err
		}
		err = a.manager.Unlock(pw)
		common.WipeByteArray(pw)
		if err == nil {
			a.unlocked = true
			return nil
		}
		if !errors.Is(err, common.ErrAuthentication) {
			return err
		}
		if attempt >= maxUnlockAttempts {
			return fmt.Errorf("%w: too many attempts", common.ErrAuthentication)
		}
		fmt.Fprintln(a.out, "Wrong password, try again.")
	}
}

// changePassword drives the interactive rekey flow.
func (a *App) changePassword(ctx context.Context) error {
	oldPw, err := GetPassword("Current password: ", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(oldPw)

	newPw, err := GetPassword("New password: ", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(newPw)

	confirm, err := GetPassword("Repeat new password: ", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(newPw, confirm) {
		return fmt.Errorf("%w: passwords do not match", common.ErrValidation)
	}

	if err := a.manager.ChangePassword(ctx, oldPw, newPw); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed; all notes and attachments re-encrypted.")
	return nil
}
