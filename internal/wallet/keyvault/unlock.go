package keyvault

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const minPasswordLength = 8

// UnlockAtStartup unlocks the vault with password, or asks for it on the terminal when empty.
func UnlockAtStartup(ctx context.Context, svc Service, password string) error {
	if password == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("vault password not configured and stdin is not a terminal")
		}

		log.Info().Msg("Vault found. Please enter password to unlock...")

		var err error
		password, err = PromptPassword("Enter vault password: ")
		if err != nil {
			return err
		}
	}

	if err := svc.Unlock(ctx, password); err != nil {
		return errors.Wrap(err, "failed to unlock vault")
	}

	return nil
}

// PromptNewPassword asks for a password twice and enforces the minimum length.
func PromptNewPassword(label string) (string, error) {
	password, err := PromptPassword(fmt.Sprintf("Enter %s (min %d characters): ", label, minPasswordLength))
	if err != nil {
		return "", err
	}

	if len(password) < minPasswordLength {
		return "", errors.Errorf("%s must be at least %d characters", label, minPasswordLength)
	}

	confirm, err := PromptPassword("Confirm " + label + ": ")
	if err != nil {
		return "", errors.Wrap(err, "failed to read confirmation")
	}

	if password != confirm {
		return "", errors.New("passwords do not match")
	}

	return password, nil
}

// PromptPassword reads a line from the terminal without echo
//
//nolint:forbidigo // Password input requires direct terminal I/O
func PromptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", errors.Wrap(err, "failed to read password from terminal")
	}

	fmt.Println()

	return string(passwordBytes), nil
}
