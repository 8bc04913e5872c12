package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kirillm/action-guard/internal/api"
	"github.com/kirillm/action-guard/internal/domain"
)

// apiClient talks to a running guard's HTTP intake API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient() *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(viper.GetString("api"), "/"),
		token:   viper.GetString("token"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *apiClient) do(method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)
	}
	if !envelope.Success {
		return fmt.Errorf("guard: %s (http %d)", envelope.Error, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

func pendingCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending approval requests on a running guard",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Count    int                       `json:"count"`
				Requests []*domain.ApprovalRequest `json:"requests"`
			}
			if err := newAPIClient().do(http.MethodGet, fmt.Sprintf("/pending?limit=%d", limit), nil, &out); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cmd, out.Requests)
			}
			renderPending(cmd.OutOrStdout(), out.Requests, time.Now())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum requests to show")
	cmd.PersistentFlags().String("api", "http://localhost:8080", "guard HTTP API base URL")
	cmd.PersistentFlags().String("token", "", "API bearer token")
	_ = viper.BindPFlag("api", cmd.PersistentFlags().Lookup("api"))
	_ = viper.BindPFlag("token", cmd.PersistentFlags().Lookup("token"))

	cmd.AddCommand(pendingApproveCmd())
	cmd.AddCommand(pendingRejectCmd())
	return cmd
}

func pendingApproveCmd() *cobra.Command {
	var by, feedback string
	cmd := &cobra.Command{
		Use:   "approve <request-id>",
		Short: "Approve a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			body := api.ResolveRequest{By: by, Feedback: feedback}
			if err := newAPIClient().do(http.MethodPost, "/pending/"+args[0]+"/approve", body, &out); err != nil {
				return err
			}
			if msg, ok := out["error"].(string); ok && msg != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "approved %s, execution failed: %s\n", args[0], msg)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approved %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", "cli", "reviewer name")
	cmd.Flags().StringVar(&feedback, "feedback", "", "optional feedback")
	return cmd
}

func pendingRejectCmd() *cobra.Command {
	var by, reason string
	cmd := &cobra.Command{
		Use:   "reject <request-id>",
		Short: "Reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := api.ResolveRequest{By: by, Reason: reason}
			if err := newAPIClient().do(http.MethodPost, "/pending/"+args[0]+"/reject", body, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rejected %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", "cli", "reviewer name")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func renderPending(w io.Writer, reqs []*domain.ApprovalRequest, now time.Time) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Type", "Level", "Score", "Value", "Priority", "Urgency", "Expires In"})
	for _, r := range reqs {
		if r.Decision == nil {
			continue
		}
		a := r.Decision.Action
		tw.AppendRow(table.Row{
			r.ID,
			a.Type,
			r.Decision.Assessment.Level,
			r.Decision.Assessment.Score,
			fmt.Sprintf("$%.2f", a.Metadata.EstimatedValue),
			fmt.Sprintf("%.1f", r.Priority),
			r.Urgency,
			r.ExpiresAt.Sub(now).Round(time.Minute),
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "", "Total", len(reqs)})
	tw.Render()
}
