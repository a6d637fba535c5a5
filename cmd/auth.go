package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tidx/internal/server"
	"github.com/desertthunder/tidx/internal/services"
	"github.com/desertthunder/tidx/internal/shared"
	"github.com/desertthunder/tidx/internal/ui"
	"github.com/urfave/cli/v3"
)

const defaultOAuthTimeout = 2 * time.Minute

// AuthStatusView is the JSON shape of `auth status`.
type AuthStatusView struct {
	UserID  int64      `json:"user_id"`
	State   string     `json:"state"`
	Expiry  *time.Time `json:"expiry,omitempty"`
	Pending bool       `json:"pending"`
}

// AuthDevice runs the device authorization flow, interactively unless --plain is set.
func (r *Runner) AuthDevice(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}
	if err := r.ready(); err != nil {
		return err
	}

	userID := cmd.Int64("user")
	if cmd.Bool("plain") {
		return r.pollDeviceLogin(ctx, userID)
	}

	model := ui.NewLoginModel(ctx, r.tokens, userID)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("error running login view: %w", err)
	}

	switch {
	case model.Err() != nil:
		return model.Err()
	case !model.Authenticated():
		return fmt.Errorf("%w: login cancelled", shared.ErrLoginFailed)
	}
	r.client.Forget(userID)
	return r.writePlain("✓ Signed in to TIDAL as local user %d\n", userID)
}

func (r *Runner) pollDeviceLogin(ctx context.Context, userID int64) error {
	login, err := r.tokens.BeginDeviceLogin(ctx, userID)
	if err != nil {
		return err
	}

	r.writePlain("→ Open %s and enter the code %s\n", login.VerificationURL, login.UserCode)
	r.writePlain("→ Waiting for approval (expires %s)...\n", login.ExpiresAt.Format(time.Kitchen))

	interval := login.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		status, err := r.tokens.PollLogin(ctx, userID)
		switch status {
		case services.LoginAuthenticated:
			r.client.Forget(userID)
			return r.writePlainln("✓ Signed in to TIDAL as local user %d", userID)
		case services.LoginFailed:
			return err
		}
		if err != nil {
			r.logger.Warn("device poll failed, retrying", "error", err)
		}
	}
}

// AuthPKCE opens the browser on a PKCE authorization URL and exchanges the code on the local callback server.
func (r *Runner) AuthPKCE(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}
	if err := r.ready(); err != nil {
		return err
	}

	userID := cmd.Int64("user")
	redirectURI := r.config.Tidal.RedirectURI
	req := r.tokens.BuildAuthorizeURL(redirectURI)

	oauthHandler := server.NewOAuthHandler(r.tokens, userID, req, redirectURI)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(oauthHandler)

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer, serverErrors, err := server.Start(addr, router, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for TIDAL authorization...\n")
	if err := r.browser(req.URL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", req.URL)
	}

	timeout := cmd.Duration("timeout")
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if result.Error() != nil {
		return fmt.Errorf("authorization failed: %w", result.Error())
	}

	r.client.Forget(userID)
	r.writePlainln("✓ Authorization successful")
	return r.writePlain("✓ Session saved for local user %d\n", userID)
}

// AuthStatus reports whether the user has a usable TIDAL session.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.ready(); err != nil {
		return err
	}

	userID := cmd.Int64("user")
	view := AuthStatusView{UserID: userID}

	tok, err := r.tokens.Token(ctx, userID)
	if err != nil && !errors.Is(err, shared.ErrUnauthenticated) {
		return err
	}
	if tok != nil && !tok.Expiry.IsZero() {
		view.Expiry = &tok.Expiry
	}
	_, view.Pending = r.tokens.PendingLogin(userID)
	view.State = r.tokens.State(userID).String()

	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}

	r.writePlainHeader("TIDAL session")
	r.writePlain("User:   %d\n", view.UserID)
	r.writePlain("State:  %s\n", view.State)
	if view.Expiry != nil {
		r.writePlain("Expiry: %s\n", view.Expiry.Local().Format(time.RFC1123))
	}
	if view.State != services.Authenticated.String() {
		r.writePlainln("Run `tidx auth device` to sign in.")
	}
	return nil
}

// AuthLogout deletes the stored credential and forgets the in-memory session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.ready(); err != nil {
		return err
	}

	userID := cmd.Int64("user")
	if err := r.creds.DeleteCredential(ctx, userID); err != nil {
		return err
	}
	r.tokens.Discard(userID)
	r.client.Forget(userID)

	r.logger.Info("signed out", "user", userID)
	return r.writePlain("✓ Signed out local user %d\n", userID)
}
