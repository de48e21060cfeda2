// Package cmd provides CLI commands for the nenavi tool.
package cmd

import (
	"fmt"

	"github.com/nb75km/nenavi-cli/client"
	"github.com/nb75km/nenavi-cli/config"
	"github.com/nb75km/nenavi-cli/credentials"
	"github.com/nb75km/nenavi-cli/pkg/errors"
	"github.com/nb75km/nenavi-cli/pkg/logging"
)

// Deps holds the dependencies shared by all commands. Tests substitute
// LoadConfig and NewSessionStore to point at fixtures.
type Deps struct {
	// Config, when set, is used instead of calling LoadConfig.
	Config *config.CLIConfig
	// LoadConfig loads the CLI configuration.
	LoadConfig func() (*config.CLIConfig, error)
	// NewSessionStore opens the persisted session store.
	NewSessionStore func() (*credentials.Store, error)
	// Logger defaults to a no-op.
	Logger logging.Logger
}

// DefaultDeps returns the production dependencies.
func DefaultDeps() *Deps {
	return &Deps{
		LoadConfig:      config.LoadConfig,
		NewSessionStore: credentials.NewStore,
		Logger:          logging.NewNopLogger(),
	}
}

// normalize fills in nil fields so partially constructed Deps (as tests
// build) still work.
func (d *Deps) normalize() {
	if d.LoadConfig == nil {
		d.LoadConfig = config.LoadConfig
	}
	if d.NewSessionStore == nil {
		d.NewSessionStore = credentials.NewStore
	}
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
}

// loadConfig returns the configuration, loading it once.
func (d *Deps) loadConfig() (*config.CLIConfig, error) {
	d.normalize()
	if d.Config != nil {
		return d.Config, nil
	}
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, err
	}
	d.Config = cfg
	return cfg, nil
}

// clientSet bundles the per-area API clients over one shared cookie jar.
type clientSet struct {
	cfg *config.CLIConfig

	minutesBase *client.Client
	chatBase    *client.Client

	auth        *client.AuthClient
	transcripts *client.TranscriptClient
	jobs        *client.JobsClient
	minutes     *client.MinutesClient
	chat        *client.ChatClient
	files       *client.FilesClient
}

// clients builds the client set. When a persisted session exists its
// cookies are seeded into the jar; a missing session is not an error, the
// backend will answer 401 where authentication is required.
func (d *Deps) clients() (*clientSet, error) {
	cfg, err := d.loadConfig()
	if err != nil {
		return nil, err
	}

	jar, err := client.NewJar()
	if err != nil {
		return nil, err
	}

	minutesBase, err := client.NewClient(client.Options{
		BaseURL: cfg.MinutesURL(),
		Timeout: cfg.Timeout,
		Jar:     jar,
		Logger:  d.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minutes client: %w", err)
	}

	chatBase, err := client.NewClient(client.Options{
		BaseURL: cfg.ChatURL(),
		Timeout: cfg.Timeout,
		Jar:     jar,
		Logger:  d.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}

	if store, err := d.NewSessionStore(); err == nil {
		if sess, err := store.LoadActive(); err == nil {
			minutesBase.SetCookies(sess.HTTPCookies())
		}
	}

	return &clientSet{
		cfg:         cfg,
		minutesBase: minutesBase,
		chatBase:    chatBase,
		auth:        client.NewAuthClient(minutesBase),
		transcripts: client.NewTranscriptClient(minutesBase),
		jobs:        client.NewJobsClient(minutesBase),
		minutes:     client.NewMinutesClient(minutesBase),
		chat:        client.NewChatClient(minutesBase, chatBase),
		files:       client.NewFilesClient(minutesBase),
	}, nil
}

// loginHint rewrites a 401 into a message pointing at the login command.
func loginHint(err error) error {
	if errors.IsUnauthorized(err) {
		return fmt.Errorf("not logged in; run 'nenavi auth login' first")
	}
	return err
}
