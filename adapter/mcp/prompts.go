package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for common billing workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("collections_review").
		Description("Review overdue invoices and delinquent subscriptions and suggest follow-ups.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Collections review",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Review the state of collections:

1. Read billora://invoices/overdue for pending invoices past their due date
2. Read billora://subscriptions/delinquent for accounts past the grace period
3. For each delinquent subscription, call billing.subscription to see its invoices

Summarize the amount outstanding per customer, point out accounts that
failed repeatedly, and suggest which ones to retry with billing.renew.`,
						},
					},
				},
			}, nil
		})

	return nil
}
