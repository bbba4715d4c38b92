package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"instaprofiler/pkg/auth"
	"instaprofiler/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Instagram sessions",
	Long: `Manage stored Instagram web sessions.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (INSTAPROFILER_SESSION_ID, INSTAPROFILER_CSRF_TOKEN)`,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store the cookies of a logged-in session",
	Example: `  # Interactive login
  instaprofiler auth login

  # Login with username
  instaprofiler auth login scraper_account`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager(nil)
		if err != nil {
			return fmt.Errorf("failed to initialize credential manager: %w", err)
		}
		if err := manager.Delete(args[0]); err != nil {
			return err
		}
		ui.PrintSuccess(cmd.OutOrStdout(), "Session removed: "+args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager(nil)
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	auth.ShowCookieExtractionGuide(out)

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		username = prompt(out, reader, "📱 Instagram username: ")
	}
	if username == "" {
		return errors.New("username is required")
	}

	if existing, _ := manager.Retrieve(username); existing != nil {
		answer := prompt(out, reader, fmt.Sprintf("\n⚠️  Session for '%s' already exists. Replace it? (y/N): ", username))
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			return nil
		}
	}

	fmt.Fprintln(out, "\n🔐 Enter your cookie values (they will be hidden as you type):")
	sessionID, err := readSecret(out, reader, "sessionid cookie value: ")
	if err != nil {
		return fmt.Errorf("failed to read session ID: %w", err)
	}
	if !strings.Contains(sessionID, "%3A") && !strings.Contains(sessionID, ":") {
		ui.PrintWarning(out, "That sessionid does not look like a cookie value, storing it anyway.")
	}
	csrfToken, err := readSecret(out, reader, "csrftoken cookie value: ")
	if err != nil {
		return fmt.Errorf("failed to read CSRF token: %w", err)
	}
	userAgent := prompt(out, reader, "\n🌐 User Agent (press Enter to use default): ")

	session := &auth.Session{
		Username:  username,
		SessionID: sessionID,
		CSRFToken: csrfToken,
		UserAgent: userAgent,
	}
	if err := manager.Store(session); err != nil {
		return err
	}

	masked := session.Masked()
	ui.PrintSuccess(out, "\n✅ Session stored: "+username)
	ui.PrintInfo(out, "SessionID", masked.SessionID)
	ui.PrintInfo(out, "CSRF Token", masked.CSRFToken)
	fmt.Fprintln(out, "\n📖 Next:")
	fmt.Fprintln(out, "   $ instaprofiler follows <instagram_username>")
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager(nil)
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	sessions, err := manager.List()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		ui.PrintInfo(cmd.OutOrStdout(), "No stored sessions", "use 'instaprofiler auth login' to add one")
		return nil
	}

	t := ui.NewTable(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Username", "Session ID", "CSRF Token", "User Agent", "Last Modified"})
	for _, s := range sessions {
		m := s.Masked()
		modified := "-"
		if !m.LastModified.IsZero() {
			modified = m.LastModified.Format("2006-01-02 15:04:05")
		}
		t.AppendRow(table.Row{m.Username, m.SessionID, m.CSRFToken, m.UserAgent, modified})
	}
	t.Render()
	return nil
}

func prompt(out io.Writer, reader *bufio.Reader, label string) string {
	fmt.Fprint(out, label)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// readSecret reads a value without echo when stdin is a terminal.
func readSecret(out io.Writer, reader *bufio.Reader, label string) (string, error) {
	fmt.Fprint(out, label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
