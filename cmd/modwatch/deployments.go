// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/invowk/modwatch/internal/admin"
	"github.com/invowk/modwatch/internal/config"
	"github.com/invowk/modwatch/internal/issue"
)

const deploymentsRequestTimeout = 5 * time.Second

// newDeploymentsCommand lists the deployments of a running serve process
// through its admin endpoint.
func newDeploymentsCommand(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "deployments",
		Short: "List the deployments of a running 'modwatch serve'",
		Long: `List the deployments of a running 'modwatch serve'.

The serve process must expose its admin endpoint (metrics.addr or
--metrics-addr). --addr defaults to the configured metrics.addr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: app.flags.configPath})
				if err != nil {
					return err
				}
				addr = cfg.Metrics.Addr
			}
			if addr == "" {
				return issue.NewErrorContext().
					WithOperation("list deployments").
					WithSuggestion("Pass --addr or set metrics.addr in the configuration").
					Wrap(fmt.Errorf("no admin address configured")).
					BuildError()
			}

			views, err := fetchDeployments(cmd.Context(), addr)
			if err != nil {
				return issue.NewErrorContext().
					WithOperation("list deployments").
					WithResource(addr).
					WithSuggestion("Check that 'modwatch serve' is running with the admin endpoint enabled").
					Wrap(err).
					BuildError()
			}
			renderDeployments(app.stdout, views)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "admin endpoint address (host:port)")
	return cmd
}

func fetchDeployments(ctx context.Context, addr string) ([]admin.DeploymentView, error) {
	ctx, cancel := context.WithTimeout(ctx, deploymentsRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/deployments", http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var views []admin.DeploymentView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return views, nil
}

func renderDeployments(w io.Writer, views []admin.DeploymentView) {
	if len(views) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("No active deployments"))
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		Headers("MODULE", "PATH", "DEPLOYMENT", "DEPLOYED AT")
	for _, v := range views {
		t.Row(v.Module, v.Path, v.Deployment, v.DeployedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(w, t.Render())
}
