// Command sift-mcp exposes the sift API as an MCP tool over stdio, so any
// MCP-capable client can scrape pages through a running sift server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// scrapeRequest mirrors the sift API request model.
type scrapeRequest struct {
	URL                 string `json:"url"`
	EnableInteractions  bool   `json:"enable_interactions,omitempty"`
	InteractionStrategy string `json:"interaction_strategy,omitempty"`
	IncludeMarkdown     bool   `json:"include_markdown,omitempty"`
}

// scrapeResponse mirrors the sift API result model.
type scrapeResponse struct {
	URL  string `json:"url"`
	Meta struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Language    string `json:"language"`
		Strategy    string `json:"strategy"`
	} `json:"meta"`
	Sections []struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Label   string `json:"label"`
		Content struct {
			Headings []string `json:"headings"`
			Text     string   `json:"text"`
			Links    []struct {
				Text string `json:"text"`
				Href string `json:"href"`
			} `json:"links"`
			Lists [][]string `json:"lists"`
		} `json:"content"`
		Markdown string `json:"markdown"`
	} `json:"sections"`
	Interactions struct {
		Clicks  []string `json:"clicks"`
		Scrolls int      `json:"scrolls"`
		Pages   []string `json:"pages"`
	} `json:"interactions"`
	Errors []struct {
		Message string `json:"message"`
		Phase   string `json:"phase"`
	} `json:"errors"`
}

func main() {
	apiURL := os.Getenv("SIFT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	// Optional: the server runs open unless SIFT_API_KEYS is set on it.
	apiKey := os.Getenv("SIFT_API_KEY")

	s := server.NewMCPServer(
		"sift",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	scrapePageTool := mcp.NewTool("scrape_page",
		mcp.WithDescription("Scrape a web page into structured sections (hero, nav, pricing, FAQ, ...). Automatically falls back to a headless browser for JavaScript-heavy pages and can interact with tabs, load-more buttons, infinite scroll and pagination."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to scrape"),
		),
		mcp.WithBoolean("enable_interactions",
			mcp.Description("Interact with the page before capture (click tabs and load-more buttons, scroll, follow pagination). Forces browser rendering."),
		),
		mcp.WithString("interaction_strategy",
			mcp.Description("Which interactions to run: 'auto' (default, tabs + load-more with scroll/pagination rescue), 'tabs', 'load_more', 'scroll', 'pagination', or 'all'"),
			mcp.Enum("auto", "tabs", "load_more", "scroll", "pagination", "all"),
		),
		mcp.WithBoolean("include_markdown",
			mcp.Description("Include a Markdown rendition of each section"),
		),
	)

	s.AddTool(scrapePageTool, handleScrapePage(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleScrapePage(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := scrapeRequest{
			URL:                 url,
			InteractionStrategy: request.GetString("interaction_strategy", ""),
		}
		args := request.GetArguments()
		if v, ok := args["enable_interactions"].(bool); ok {
			reqBody.EnableInteractions = v
		}
		if v, ok := args["include_markdown"].(bool); ok {
			reqBody.IncludeMarkdown = v
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/scrape", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		if resp.StatusCode != http.StatusOK {
			return mcp.NewToolResultError(apiErrorMessage(resp.StatusCode, respBody)), nil
		}

		var scrapeResp scrapeResponse
		if err := json.Unmarshal(respBody, &scrapeResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		// A result with no sections and errors is a total failure.
		if len(scrapeResp.Sections) == 0 && len(scrapeResp.Errors) > 0 {
			msgs := make([]string, 0, len(scrapeResp.Errors))
			for _, e := range scrapeResp.Errors {
				msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
			}
			return mcp.NewToolResultError("scrape failed: " + strings.Join(msgs, "; ")), nil
		}

		return mcp.NewToolResultText(formatResult(&scrapeResp)), nil
	}
}

// apiErrorMessage extracts a human message from a non-200 response. Auth
// and rate-limit failures carry {"error": ...}; boundary rejections carry
// a full result with errors.
func apiErrorMessage(status int, body []byte) string {
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return apiErr.Error
	}

	var res scrapeResponse
	if err := json.Unmarshal(body, &res); err == nil && len(res.Errors) > 0 {
		return res.Errors[0].Message
	}

	return fmt.Sprintf("API returned status %d", status)
}

// maxLinksPerSection caps link dumps for nav-like sections.
const maxLinksPerSection = 20

// formatResult renders a scrape result as readable text for the MCP client.
func formatResult(res *scrapeResponse) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Title: %s\nSource: %s\nStrategy: %s\n", res.Meta.Title, res.URL, res.Meta.Strategy))

	in := res.Interactions
	if len(in.Clicks) > 0 || in.Scrolls > 0 || len(in.Pages) > 1 {
		sb.WriteString(fmt.Sprintf("Interactions: %d clicks, %d scrolls, %d pages\n", len(in.Clicks), in.Scrolls, len(in.Pages)))
	}
	sb.WriteString("\n")

	for _, sec := range res.Sections {
		label := sec.Label
		if label == "" {
			label = sec.ID
		}
		sb.WriteString(fmt.Sprintf("--- %s (%s) ---\n", label, sec.Type))

		if sec.Markdown != "" {
			sb.WriteString(strings.TrimSpace(sec.Markdown) + "\n\n")
			continue
		}

		for _, h := range sec.Content.Headings {
			sb.WriteString("# " + h + "\n")
		}
		if sec.Content.Text != "" {
			sb.WriteString(sec.Content.Text + "\n")
		}
		for _, list := range sec.Content.Lists {
			for _, item := range list {
				sb.WriteString("- " + item + "\n")
			}
		}
		// Link-dominated sections (nav, footer) carry no text; the links
		// are the content.
		if sec.Content.Text == "" {
			for i, l := range sec.Content.Links {
				if i == maxLinksPerSection {
					sb.WriteString(fmt.Sprintf("... (%d more links)\n", len(sec.Content.Links)-maxLinksPerSection))
					break
				}
				sb.WriteString(fmt.Sprintf("[%s](%s)\n", l.Text, l.Href))
			}
		}
		sb.WriteString("\n")
	}

	if len(res.Errors) > 0 {
		sb.WriteString("Warnings:\n")
		for _, e := range res.Errors {
			sb.WriteString(fmt.Sprintf("- [%s] %s\n", e.Phase, e.Message))
		}
	}

	return sb.String()
}
