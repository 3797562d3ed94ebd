package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/ruffel/sshmcp"
	"github.com/ruffel/sshmcp/keys"
	"github.com/ruffel/sshmcp/profiles"
)

func renderResult(res *sshmcp.CommandResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Exit Code: %d\n", res.ExitStatus)

	if res.Stdout != "" {
		b.WriteString("\n--- STDOUT ---\n")
		b.WriteString(res.Stdout)
	}

	if res.Stderr != "" {
		b.WriteString("\n--- STDERR ---\n")
		b.WriteString(res.Stderr)
	}

	return b.String()
}

func writeSessionSummary(b *strings.Builder, info sshmcp.SessionInfo) {
	fmt.Fprintf(b, "Session ID: %s\n", info.ID)
	fmt.Fprintf(b, "Host: %s:%d\n", info.Host, info.Port)
	fmt.Fprintf(b, "Username: %s\n", info.Username)
	fmt.Fprintf(b, "Connected at: %s", timestamp(info.ConnectedAt))
}

func renderSessions(infos []sshmcp.SessionInfo) string {
	if len(infos) == 0 {
		return "No active sessions"
	}

	var b strings.Builder

	b.WriteString("Active Sessions:\n")

	for _, info := range infos {
		fmt.Fprintf(&b, "\n- Session ID: %s\n", info.ID)
		fmt.Fprintf(&b, "  Host: %s:%d\n", info.Host, info.Port)
		fmt.Fprintf(&b, "  Username: %s\n", info.Username)
		fmt.Fprintf(&b, "  State: %s\n", info.State)
		fmt.Fprintf(&b, "  Connected: %s\n", timestamp(info.ConnectedAt))
		fmt.Fprintf(&b, "  Commands: %d\n", info.CommandCount)

		if info.LastError != "" {
			fmt.Fprintf(&b, "  Last error: %s\n", info.LastError)
		}
	}

	return b.String()
}

func renderHosts(hosts []profiles.Host) string {
	if len(hosts) == 0 {
		return "No SSH hosts configured"
	}

	var b strings.Builder

	b.WriteString("Configured SSH Hosts:\n")

	for _, h := range hosts {
		port := h.Port
		if port == 0 {
			port = sshmcp.DefaultPort
		}

		fmt.Fprintf(&b, "\n- Name: %s\n", h.Name)
		fmt.Fprintf(&b, "  Host: %s:%d\n", h.Host, port)
		fmt.Fprintf(&b, "  Username: %s\n", h.Username)
		fmt.Fprintf(&b, "  Password: %s\n", masked(h.Password))

		if h.PrivateKeyPath != "" {
			fmt.Fprintf(&b, "  Key: %s\n", h.PrivateKeyPath)
		}
	}

	return b.String()
}

func renderConfigSaved(l profiles.Login, path string) string {
	return fmt.Sprintf("SSH configuration saved:\nHost: %s:%d\nUsername: %s\nConfig file: %s", l.Host, l.Port, l.Username, path)
}

func renderKey(pair *keys.Pair, savePath string) string {
	saved := "Key not saved (provide save_path to persist)"
	if savePath != "" {
		saved = "Saved to: " + savePath
	}

	return fmt.Sprintf("Generated %s key pair\nFingerprint: %s\nPublic Key:\n%s\n%s", pair.Type, pair.Fingerprint, pair.PublicKey, saved)
}

func renderEntries(dir string, entries []sshmcp.FileEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("No files in %s", dir)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Files in %s:\n", dir)

	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}

		fmt.Fprintf(&b, "  - %s\t%s\t%d\n", name, e.Mode, e.Size)
	}

	return b.String()
}

func masked(secret string) string {
	if secret == "" {
		return "N/A"
	}

	return "***"
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Format(time.RFC3339)
}
