package login

import (
	"context"
	"errors"
	"floatfetch/internal/apiclient"
	"floatfetch/internal/bootstrap"
	"floatfetch/internal/floatplane"
	"floatfetch/internal/utils"
	"fmt"
	"io"
	"strings"
)

const defaultAttempts = 3

// ErrUnsupportedClient is returned when the video-service client cannot log in.
var ErrUnsupportedClient = errors.New("video service client does not support login")

// CredentialPrompter collects login details for a named service.
type CredentialPrompter interface {
	Username(service string) (string, error)
	Password(service string) (string, error)
	TwoFactorToken(service string) (string, error)
}

// FloatplaneAuthenticator is the part of the floatplane client used to log in.
type FloatplaneAuthenticator interface {
	Login(ctx context.Context, username, password string) (floatplane.LoginResult, error)
	CheckFor2FA(ctx context.Context, token string) (floatplane.User, error)
}

// PlexAuthenticator is the part of the plex.tv client used to log in.
type PlexAuthenticator interface {
	SignIn(ctx context.Context, username, password string) (string, error)
	VerifyToken(ctx context.Context, token string) (string, error)
}

// TokenSource supplies a ready-made token, e.g. from the clipboard.
type TokenSource interface {
	ReadToken() (string, error)
}

func attempts(n int) int {
	if n <= 0 {
		return defaultAttempts
	}
	return n
}

func writer(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// retryable reports whether a failed login should ask for credentials again.
func retryable(err error) bool {
	return errors.Is(err, apiclient.ErrUnauthorized)
}

// Floatplane logs in to the video service with prompted credentials.
type Floatplane struct {
	Prompter CredentialPrompter
	Out      io.Writer
	Attempts int
}

// LoginVideoService implements bootstrap.VideoServiceLogin.
func (f *Floatplane) LoginVideoService(ctx context.Context, client bootstrap.VideoServiceClient) error {
	auth, ok := client.(FloatplaneAuthenticator)
	if !ok {
		return ErrUnsupportedClient
	}
	out := writer(f.Out)

	var lastErr error
	for attempt := 1; attempt <= attempts(f.Attempts); attempt++ {
		username, err := f.Prompter.Username("floatplane")
		if err != nil {
			return err
		}
		password, err := f.Prompter.Password("floatplane")
		if err != nil {
			return err
		}

		result, err := auth.Login(ctx, strings.TrimSpace(username), password)
		if err != nil {
			lastErr = err
			if !retryable(err) {
				return err
			}
			utils.Debug("Floatplane login attempt %d failed: %v", attempt, err)
			fmt.Fprintf(out, "Looks like those login details didn't work, please try again...\n")
			continue
		}

		if result.NeedsTwoFactor {
			token, err := f.Prompter.TwoFactorToken("floatplane")
			if err != nil {
				return err
			}
			user, err := auth.CheckFor2FA(ctx, strings.TrimSpace(token))
			if err != nil {
				lastErr = err
				if !retryable(err) {
					return err
				}
				fmt.Fprintf(out, "That 2FA token didn't work, please try again...\n")
				continue
			}
			result.User = user
		}

		fmt.Fprintf(out, "\nSigned in as %s!\n", result.User.Username)
		return nil
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts(f.Attempts), lastErr)
}

// Plex obtains a plex.tv token, from the token source when one is set and
// from prompted credentials otherwise.
type Plex struct {
	Prompter CredentialPrompter
	Client   PlexAuthenticator
	Tokens   TokenSource
	Out      io.Writer
	Attempts int
}

// LoginMediaServer implements bootstrap.MediaServerLogin.
func (p *Plex) LoginMediaServer(ctx context.Context) (string, error) {
	out := writer(p.Out)

	if p.Tokens != nil {
		token, err := p.Tokens.ReadToken()
		if err != nil {
			return "", err
		}
		name, err := p.Client.VerifyToken(ctx, token)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(out, "\nSigned in to plex as %s!\n", name)
		return token, nil
	}

	var lastErr error
	for attempt := 1; attempt <= attempts(p.Attempts); attempt++ {
		username, err := p.Prompter.Username("plex")
		if err != nil {
			return "", err
		}
		password, err := p.Prompter.Password("plex")
		if err != nil {
			return "", err
		}

		token, err := p.Client.SignIn(ctx, strings.TrimSpace(username), password)
		if err != nil {
			lastErr = err
			if !retryable(err) {
				return "", err
			}
			utils.Debug("Plex login attempt %d failed: %v", attempt, err)
			fmt.Fprintf(out, "Looks like those login details didn't work, please try again...\n")
			continue
		}
		fmt.Fprintf(out, "\nSigned in to plex as %s!\n", strings.TrimSpace(username))
		return token, nil
	}
	return "", fmt.Errorf("giving up after %d attempts: %w", attempts(p.Attempts), lastErr)
}
