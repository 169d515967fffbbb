package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

const passwordEnv = "MARKETPLACE_PASSWORD"

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the marketplace",
	Long: `Sign in and persist the session token in the configured token store.

The password is taken from --password or, when omitted, from
MARKETPLACE_PASSWORD.

Examples:
  marketplace-agent login -u alice
  TOKEN_STORE=redis marketplace-agent login -u alice -p secret`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored token",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().StringP("username", "u", "", "username")
	loginCmd.Flags().StringP("password", "p", "", "password (default $"+passwordEnv+")")
	_ = loginCmd.MarkFlagRequired("username")

	whoamiCmd.Flags().Bool("json", false, "output as JSON")
}

func runLogin(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return errors.New("password is required (--password or " + passwordEnv + ")")
	}

	ctx := cmd.Context()
	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	identity, err := a.Session.Login(ctx, domain.Credentials{Username: username, Password: password})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", identity.DisplayName(), formatRoles(identity.Roles))
	if cfg.Session.TokenStore == "memory" {
		log.Warn().Msg("TOKEN_STORE=memory: the session ends with this command")
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	a.Session.Logout()
	fmt.Fprintln(cmd.OutOrStdout(), "signed out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx := cmd.Context()
	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	identity := a.Session.CurrentIdentity()
	w := cmd.OutOrStdout()

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"authenticated": identity != nil,
			"user":          identity,
		})
	}

	if identity == nil {
		fmt.Fprintln(w, "not signed in")
		return nil
	}
	fmt.Fprintf(w, "%s (%s)\n", identity.DisplayName(), identity.Username)
	fmt.Fprintf(w, "  id:      %s\n", identity.ID)
	fmt.Fprintf(w, "  roles:   %s\n", formatRoles(identity.Roles))
	fmt.Fprintf(w, "  expires: %s\n", a.Session.Expiry().Format("2006-01-02 15:04:05 MST"))
	return nil
}

func formatRoles(roles []domain.Role) string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, strings.TrimPrefix(string(r), "ROLE_"))
	}
	if len(names) == 0 {
		return "no roles"
	}
	return strings.ToLower(strings.Join(names, ", "))
}
