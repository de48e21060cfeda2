package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/nb75km/nenavi-cli/client"
)

// Health command flags.
var (
	healthWatch  bool
	healthOutput string
)

// NewHealthCommand creates the health command.
func NewHealthCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check backend service health",
		Long: `Probe the health endpoints of the minutes and chat services.

Without --watch the command checks once and exits non-zero when any
service is unhealthy. With --watch it re-checks on the configured
interval until interrupted.

Examples:
  nenavi health
  nenavi health -o json
  nenavi health --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd, deps)
		},
	}

	cmd.Flags().BoolVar(&healthWatch, "watch", false, "Re-check on the configured interval")
	cmd.Flags().StringVarP(&healthOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func runHealth(cmd *cobra.Command, deps *Deps) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	checks := healthClients(set)

	if !healthWatch {
		return reportHealth(cmd, set, checks)
	}

	ticker := time.NewTicker(set.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		if err := reportHealth(cmd, set, checks); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
		}
		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
		}
	}
}

// healthClients builds one checker per service base.
func healthClients(set *clientSet) []*client.HealthClient {
	return []*client.HealthClient{
		client.NewHealthClient(set.minutesBase, "minutes"),
		client.NewHealthClient(set.chatBase, "chat"),
	}
}

func reportHealth(cmd *cobra.Command, set *clientSet, checks []*client.HealthClient) error {
	results := lo.Map(checks, func(h *client.HealthClient, _ int) client.ServiceHealth {
		return h.Check(cmd.Context())
	})

	type report struct {
		Service string `json:"service" yaml:"service"`
		Healthy bool   `json:"healthy" yaml:"healthy"`
		Status  string `json:"status,omitempty" yaml:"status,omitempty"`
		Error   string `json:"error,omitempty" yaml:"error,omitempty"`
	}
	reports := lo.Map(results, func(r client.ServiceHealth, _ int) report {
		rep := report{Service: r.Name, Healthy: r.Healthy, Status: r.Status}
		if r.Err != nil {
			rep.Error = r.Err.Error()
		}
		return rep
	})

	err := writeOutput(cmd.OutOrStdout(), outputFormat(healthOutput, set.cfg), reports, func(w io.Writer) {
		for _, r := range reports {
			mark := "OK"
			detail := r.Status
			if !r.Healthy {
				mark = "DOWN"
				if r.Error != "" {
					detail = r.Error
				}
			}
			fmt.Fprintf(w, "%-10s %-5s %s\n", r.Service, mark, detail)
		}
	})
	if err != nil {
		return err
	}

	if down := lo.CountBy(results, func(r client.ServiceHealth) bool { return !r.Healthy }); down > 0 {
		return fmt.Errorf("%d service(s) unhealthy", down)
	}
	return nil
}
