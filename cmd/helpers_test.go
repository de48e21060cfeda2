// Package cmd provides CLI commands for the nenavi tool.
package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/nb75km/nenavi-cli/config"
)

const testEncryptionKey = "5f4e3d2c1b0a99887766554433221100ffeeddccbbaa99887766554433221100"

// newTestDeps starts a backend on mux and returns Deps pointing at it.
// The config directory is redirected to a temp dir so session files and
// chat history never touch the real home directory.
func newTestDeps(t *testing.T, mux *http.ServeMux) *Deps {
	t.Helper()

	t.Setenv("NENAVI_CONFIG_DIR", t.TempDir())
	t.Setenv("NENAVI_ENCRYPTION_KEY", testEncryptionKey)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &Deps{
		Config: &config.CLIConfig{
			ServerURL:      server.URL,
			MinutesPath:    "/minutes/api",
			ChatPath:       "/chat/api",
			Timeout:        5 * time.Second,
			PollInterval:   10 * time.Millisecond,
			HealthInterval: time.Hour,
			Model:          "gpt-4o-mini",
			OutputFormat:   config.OutputFormatText,
		},
	}
}

// execute runs the command with args and returns captured stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// executeWithInput runs the command with stdin wired to input.
func executeWithInput(t *testing.T, cmd *cobra.Command, input string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// subcommandNames returns the names of a command's direct children.
func subcommandNames(cmd *cobra.Command) map[string]bool {
	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	return names
}
