// Package vaultctl implements the admin CLI that talks to the daemon's HTTP
// API: unlocking the vault and uploading provider credentials.
package vaultctl

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

	"golang.org/x/term"

	"github.com/msavelyev/calhub/internal/common"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Options carries the parsed command line.
type Options struct {
	ServerURL string
	Token     string
	Provider  string
	CredsFile string
}

type App struct {
	opts   Options
	client *http.Client
	out    io.Writer
}

func NewApp(opts Options) *App {
	return &App{
		opts:   opts,
		client: &http.Client{Timeout: 30 * time.Second},
		out:    os.Stdout,
	}
}

// Run dispatches the subcommand.
func (a *App) Run(ctx context.Context, command string) error {
	switch command {
	case "unlock":
		return a.unlock(ctx)
	case "set-item":
		return a.setItem(ctx)
	default:
		return fmt.Errorf("unknown command %q (want unlock or set-item)", command)
	}
}

func (a *App) unlock(ctx context.Context) error {
	fmt.Fprint(a.out, "Enter vault password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	defer common.WipeByteArray(pw)

	body, err := json.Marshal(map[string]string{"password": string(pw)})
	if err != nil {
		return err
	}

	if err := a.post(ctx, "/vault/unlock", body); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "vault unlocked")
	return nil
}

func (a *App) setItem(ctx context.Context) error {
	if a.opts.Provider == "" {
		return fmt.Errorf("missing -p provider key")
	}
	creds, err := os.ReadFile(a.opts.CredsFile)
	if err != nil {
		return fmt.Errorf("reading credentials file: %w", err)
	}
	if !json.Valid(creds) {
		return fmt.Errorf("credentials file is not valid JSON")
	}

	if err := a.post(ctx, "/vault/items/"+a.opts.Provider, creds); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "credentials stored")
	return nil
}

func (a *App) post(ctx context.Context, path string, body []byte) error {
	url := strings.TrimRight(a.opts.ServerURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.opts.Token)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("server: %s (HTTP %d)", apiErr.Error, resp.StatusCode)
	}
	return fmt.Errorf("server returned HTTP %d", resp.StatusCode)
}
