package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"ytrelay/internal/app"
	"ytrelay/internal/credential"
)

var (
	authInfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	authSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	authWarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	authErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var authOpen bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored YouTube credential",
	Long:  `Authenticate with YouTube and inspect or refresh the stored credential.`,
}

var authURLCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the consent URL",
	RunE:  runAuthURL,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate interactively",
	Long: `Open the consent page, then paste the authorization code (or the whole
redirect URL) to store a credential without running the server.`,
	RunE: runAuthLogin,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored credential state",
	RunE:  runAuthStatus,
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the access token now",
	RunE:  runAuthRefresh,
}

func init() {
	authURLCmd.Flags().BoolVar(&authOpen, "open", false, "Open the URL in a browser")
	authCmd.AddCommand(authURLCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRefreshCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthURL(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	manager, closeStore, err := app.BuildCredentials(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	authURL := manager.AuthCodeURL(uuid.NewString())
	fmt.Println(authURL)
	if authOpen {
		if err := browser.OpenURL(authURL); err != nil {
			slog.Warn("Could not open browser", "error", err)
		}
	}
	return nil
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	manager, closeStore, err := app.BuildCredentials(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	authURL := manager.AuthCodeURL(uuid.NewString())
	fmt.Println(authInfoStyle.Render("\nOpening browser for YouTube authentication..."))
	fmt.Println(authInfoStyle.Render("If browser doesn't open, visit:\n" + authURL))
	_ = browser.OpenURL(authURL)

	var input string
	if err := huh.NewInput().
		Title("Authorization code").
		Description("Paste the code or the full URL you were redirected to").
		Value(&input).
		Validate(func(s string) error {
			if _, err := extractCode(s); err != nil {
				return err
			}
			return nil
		}).
		Run(); err != nil {
		return err
	}

	code, err := extractCode(input)
	if err != nil {
		return err
	}

	cred, err := manager.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	fmt.Println(authSuccessStyle.Render("✓ YouTube authentication complete"))
	fmt.Println(authSuccessStyle.Render("  Access token valid until: " + formatExpiry(cred.Expiry)))
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	manager, closeStore, err := app.BuildCredentials(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	fmt.Println(authInfoStyle.Render("\nCredential Status:\n"))

	status, err := manager.Status(ctx)
	if err != nil {
		fmt.Println(authErrorStyle.Render("✗ Stored credential is unreadable: " + err.Error()))
		return err
	}

	switch {
	case !status.Authenticated:
		fmt.Println(authErrorStyle.Render("✗ Not authenticated"))
		fmt.Println(authInfoStyle.Render("  Run: ytrelay auth login"))
	case status.Usable:
		fmt.Println(authSuccessStyle.Render("✓ Authenticated, access token valid until " + formatExpiry(status.Expiry)))
	default:
		fmt.Println(authWarnStyle.Render("○ Authenticated, access token expired at " + formatExpiry(status.Expiry)))
		fmt.Println(authInfoStyle.Render("  It is refreshed on the next upload, or run: ytrelay auth refresh"))
	}
	if len(status.Scopes) > 0 {
		fmt.Println(authInfoStyle.Render("  Scopes: " + strings.Join(status.Scopes, " ")))
	}

	fmt.Println()
	return nil
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	manager, closeStore, err := app.BuildCredentials(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	current, err := manager.Load(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: run ytrelay auth login", credential.ErrNotAuthenticated)
	}

	refreshed, err := manager.Refresh(ctx, *current)
	if errors.Is(err, credential.ErrAuthExpired) {
		fmt.Println(authErrorStyle.Render("✗ Refresh token rejected, run: ytrelay auth login"))
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to refresh: %w", err)
	}

	fmt.Println(authSuccessStyle.Render("✓ Access token refreshed, valid until " + formatExpiry(refreshed.Expiry)))
	return nil
}

// extractCode accepts either a bare authorization code or the redirect URL
// carrying it in the code query parameter.
func extractCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("authorization code is empty")
	}

	if !strings.Contains(input, "://") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	if msg := u.Query().Get("error"); msg != "" {
		return "", fmt.Errorf("consent denied: %s", msg)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New("redirect URL has no code parameter")
	}
	return code, nil
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format(time.RFC1123)
}
