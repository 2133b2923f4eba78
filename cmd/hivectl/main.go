// Command hivectl is a small operator CLI that talks to a running hubd
// instance over its admin HTTP API: listing agents, listing bridges with
// their discovered tools, and tailing broadcasts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/lancejames221b/agent-hivemind/pkg/agents"
	"github.com/lancejames221b/agent-hivemind/pkg/shared/httputil"
	"github.com/lancejames221b/agent-hivemind/pkg/tools"
)

var Version = "dev"

func main() {
	baseURL := flag.String("url", "http://localhost:8787", "hubd admin API base URL")
	username := flag.String("user", "admin", "login username")
	password := flag.String("password", "", "login password (or set HIVECTL_PASSWORD)")
	timeoutSecs := flag.Int("timeout", 10, "per-request timeout in seconds")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if *password == "" {
		*password = os.Getenv("HIVECTL_PASSWORD")
	}

	c := &client{baseURL: *baseURL, timeoutSecs: *timeoutSecs}
	token, _, err := c.login(*username, *password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hivectl: login: %v\n", err)
		os.Exit(1)
	}
	c.token = token

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "agents":
		err = c.listAgents(rest)
	case "bridges":
		err = c.listBridges()
	case "broadcasts":
		err = c.tailBroadcasts(rest)
	case "version":
		fmt.Println("hivectl " + Version)
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hivectl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: hivectl [flags] <command> [args]

commands:
  agents [--all]        list registered agents (--all includes offline)
  bridges                list registered MCP bridge servers and their tools
  broadcasts [role]      tail the broadcast bus, optionally filtered to a role
  version                print the hivectl build version`)
	flag.PrintDefaults()
}

type client struct {
	baseURL     string
	timeoutSecs int
	token       string
}

func (c *client) authHeaders() map[string]string {
	if c.token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.token}
}

func (c *client) login(username, password string) (string, time.Time, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.timeoutSecs)*time.Second)
	defer cancel()

	body, _, err := httputil.PostJSON(ctx, c.baseURL+"/admin/api/login", nil,
		map[string]string{"username": username, "password": password}, c.timeoutSecs)
	if err != nil {
		return "", time.Time{}, err
	}
	var out struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", time.Time{}, fmt.Errorf("decoding login response: %w", err)
	}
	return out.Token, out.ExpiresAt, nil
}

func (c *client) listAgents(args []string) error {
	includeInactive := false
	for _, a := range args {
		if a == "--all" {
			includeInactive = true
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.timeoutSecs)*time.Second)
	defer cancel()

	url := c.baseURL + "/admin/api/agents"
	if includeInactive {
		url += "?include_inactive=true"
	}
	body, _, err := httputil.GetJSON(ctx, url, c.authHeaders(), c.timeoutSecs)
	if err != nil {
		return err
	}
	var page agents.RosterPage
	if err := json.Unmarshal(body, &page); err != nil {
		return fmt.Errorf("decoding roster: %w", err)
	}

	fmt.Printf("%-20s %-12s %-10s %6s/%-6s %s\n", "AGENT", "ROLE", "STATUS", "LOAD", "MAX", "MACHINE")
	for _, a := range page.Agents {
		fmt.Printf("%-20s %-12s %-10s %6d/%-6d %s\n", a.AgentID, a.Role, a.Status, a.CurrentWorkload, a.MaxWorkload, a.MachineID)
	}
	fmt.Printf("%d of %d agents shown\n", len(page.Agents), page.Total)
	return nil
}

func (c *client) listBridges() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.timeoutSecs)*time.Second)
	defer cancel()

	body, _, err := httputil.GetJSON(ctx, c.baseURL+"/admin/api/bridges", c.authHeaders(), c.timeoutSecs)
	if err != nil {
		return err
	}
	var list []tools.BridgeInfo
	if err := json.Unmarshal(body, &list); err != nil {
		return fmt.Errorf("decoding bridge list: %w", err)
	}

	for _, b := range list {
		fmt.Printf("%-20s %-10s %d tools\n", b.ServerID, b.Status, len(b.Tools))
		for _, name := range b.Tools {
			fmt.Printf("  - %s\n", name)
		}
	}
	if len(list) == 0 {
		fmt.Println("no bridges registered")
	}
	return nil
}

// tailBroadcasts polls the replay endpoint rather than holding an SSE
// connection open: hivectl is a short-lived inspection tool, not a
// long-running subscriber, so a simple poll loop keeps it free of any
// connection-lifecycle state to manage.
func (c *client) tailBroadcasts(args []string) error {
	role := ""
	if len(args) > 0 {
		role = args[0]
	}

	var afterID int64
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.timeoutSecs)*time.Second)
		url := fmt.Sprintf("%s/admin/api/broadcasts?after=%d", c.baseURL, afterID)
		if role != "" {
			url += "&role=" + role
		}
		body, _, err := httputil.GetJSON(ctx, url, c.authHeaders(), c.timeoutSecs)
		cancel()
		if err != nil {
			return err
		}
		var batch []agents.Broadcast
		if err := json.Unmarshal(body, &batch); err != nil {
			return fmt.Errorf("decoding broadcast batch: %w", err)
		}
		for _, b := range batch {
			fmt.Printf("[%s] %s/%s: %s\n", b.Severity, b.SourceAgent, b.Category, b.Message)
			afterID = b.BroadcastID
		}
		time.Sleep(2 * time.Second)
	}
}
