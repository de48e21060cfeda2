package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nb75km/nenavi-cli/credentials"
	"github.com/nb75km/nenavi-cli/pkg/errors"
)

// Auth command flags.
var (
	authEmail    string
	authPassword string
	authOutput   string
)

// NewAuthCommand creates the auth command group.
func NewAuthCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the login session",
		Long: `Manage the login session for the NE Navi backend.

The backend authenticates with a session cookie. 'auth login' obtains the
cookie and stores it encrypted in ~/.nenavi/session.yaml; every other
command replays it automatically.

Examples:
  nenavi auth login --email user@example.com
  nenavi auth status
  nenavi auth logout`,
	}

	cmd.AddCommand(newAuthLoginCommand(deps))
	cmd.AddCommand(newAuthRegisterCommand(deps))
	cmd.AddCommand(newAuthLogoutCommand(deps))
	cmd.AddCommand(newAuthStatusCommand(deps))

	return cmd
}

func newAuthLoginCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Long: `Log in to the NE Navi backend.

Prompts for email and password when not given as flags. The password is
read without echo. On success the session cookie is stored encrypted so
later commands stay authenticated.

Examples:
  nenavi auth login
  nenavi auth login --email user@example.com
  NENAVI_PASSWORD=... nenavi auth login --email user@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd, deps)
		},
	}

	cmd.Flags().StringVar(&authEmail, "email", "", "Account email")
	cmd.Flags().StringVar(&authPassword, "password", "", "Account password (prompted when omitted)")

	return cmd
}

func runAuthLogin(cmd *cobra.Command, deps *Deps) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	email := authEmail
	if email == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Email: ")
		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return fmt.Errorf("email is required")
	}

	password := authPassword
	if password == "" {
		password = os.Getenv("NENAVI_PASSWORD")
	}
	if password == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = string(raw)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	if err := set.auth.Login(cmd.Context(), email, password); err != nil {
		if errors.IsValidation(err) || errors.IsUnauthorized(err) {
			return fmt.Errorf("login failed: check email and password")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	cookies := set.auth.SessionCookies()
	if len(cookies) == 0 {
		return fmt.Errorf("login succeeded but no session cookie was set")
	}

	store, err := deps.NewSessionStore()
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}

	sess := &credentials.Session{
		ServerURL: set.cfg.ServerURL,
		Email:     email,
	}
	for _, c := range cookies {
		sess.Cookies = append(sess.Cookies, credentials.SessionCookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    c.Path,
			Expires: c.Expires,
		})
	}
	if err := store.Save(sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", email)
	return nil
}

func newAuthRegisterCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		Long: `Create a new account on the NE Navi backend and log in with it.

Examples:
  nenavi auth register --email new@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthRegister(cmd, deps)
		},
	}

	cmd.Flags().StringVar(&authEmail, "email", "", "Account email")
	cmd.Flags().StringVar(&authPassword, "password", "", "Account password (prompted when omitted)")

	return cmd
}

func runAuthRegister(cmd *cobra.Command, deps *Deps) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	if authEmail == "" {
		return fmt.Errorf("--email is required")
	}

	password := authPassword
	if password == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		password = string(raw)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	user, err := set.auth.Register(cmd.Context(), authEmail, password)
	if err != nil {
		if errors.IsConflict(err) || errors.IsValidation(err) {
			return fmt.Errorf("registration failed: %w", err)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", user.Email)
	fmt.Fprintln(cmd.OutOrStdout(), "Run 'nenavi auth login' to start a session.")
	return nil
}

func newAuthLogoutCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the stored session",
		Long: `Log out from the NE Navi backend.

The server-side session is invalidated when reachable; the locally stored
session is cleared either way.

Examples:
  nenavi auth logout`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogout(cmd, deps)
		},
	}
}

func runAuthLogout(cmd *cobra.Command, deps *Deps) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	// Local state is cleared even when the backend is unreachable.
	if err := set.auth.Logout(cmd.Context()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: server logout failed: %v\n", err)
	}

	store, err := deps.NewSessionStore()
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	if err := store.Delete(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func newAuthStatusCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session status",
		Long: `Check whether the stored session is still accepted by the backend.

Examples:
  nenavi auth status
  nenavi auth status -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus(cmd, deps)
		},
	}

	cmd.Flags().StringVarP(&authOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func runAuthStatus(cmd *cobra.Command, deps *Deps) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	loggedIn, user, err := set.auth.IsLoggedIn(cmd.Context())
	if err != nil {
		// Any failed session check reads as logged out; the cause still
		// gets surfaced.
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: session check failed: %v\n", err)
		loggedIn, user = false, nil
	}

	type status struct {
		LoggedIn bool   `json:"logged_in" yaml:"logged_in"`
		Email    string `json:"email,omitempty" yaml:"email,omitempty"`
		Server   string `json:"server" yaml:"server"`
		Cookie   string `json:"cookie,omitempty" yaml:"cookie,omitempty"`
		Expires  string `json:"expires,omitempty" yaml:"expires,omitempty"`
	}
	s := status{LoggedIn: loggedIn, Server: set.cfg.ServerURL}
	if user != nil {
		s.Email = user.Email
	}
	if loggedIn {
		if store, err := deps.NewSessionStore(); err == nil {
			if sess, err := store.Load(); err == nil && len(sess.Cookies) > 0 {
				c := sess.Cookies[0]
				s.Cookie = fmt.Sprintf("%s=%s", c.Name, credentials.MaskCookieValue(c.Value))
				s.Expires = credentials.FormatExpiry(c.Expires)
			}
		}
	}

	return writeOutput(cmd.OutOrStdout(), outputFormat(authOutput, set.cfg), s, func(w io.Writer) {
		if !loggedIn {
			fmt.Fprintf(w, "Not logged in (%s)\n", s.Server)
			return
		}
		fmt.Fprintf(w, "Logged in as %s (%s)\n", s.Email, s.Server)
		if s.Cookie != "" {
			fmt.Fprintf(w, "Session cookie %s, expires: %s\n", s.Cookie, s.Expires)
		}
	})
}
