// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pdiddy/astroquery/internal/auth"
	"github.com/pdiddy/astroquery/internal/catalog"
	"github.com/pdiddy/astroquery/internal/secrets"
)

var loginCmd = &cobra.Command{
	Use:   "login SERVICE",
	Short: "Store credentials for an archive and verify them",
	Long: `Login checks the credentials against the service's login endpoint and,
when they are accepted, stores them in the secrets directory. Later
commands against the service log in automatically.

The password is prompted for on a terminal, or read from standard input
with --password-stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	service := args[0]
	user, _ := cmd.Flags().GetString("user")
	fromStdin, _ := cmd.Flags().GetBool("password-stdin")
	noStore, _ := cmd.Flags().GetBool("no-store")
	secretsDir, _ := cmd.Flags().GetString("secrets-dir")

	loginURL, logoutURL, ok := catalog.LoginURLs(service, cfg.Services)
	if !ok {
		return fmt.Errorf("service %s has no login endpoint; set login_url in the config file", service)
	}
	if user == "" {
		if stored, _, err := secrets.Credentials(loadedSecrets, service); err == nil {
			user = stored
		} else {
			return fmt.Errorf("--user is required")
		}
	}

	password, err := readPassword(os.Stdin, fromStdin, fmt.Sprintf("Password for %s@%s: ", user, service))
	if err != nil {
		return err
	}

	rt := newEnv()
	defer rt.Close()

	sess, err := auth.NewSession(service, loginURL, logoutURL, cfg.HTTP.Timeout)
	if err != nil {
		return err
	}
	sess.UserAgent = cfg.HTTP.UserAgent
	if err := sess.Login(rt.ctx, user, password); err != nil {
		return err
	}
	defer sess.Logout(rt.ctx)

	fmt.Printf("Logged in to %s as %s\n", service, user)
	if noStore {
		return nil
	}
	if err := secrets.Store(secretsDir, service, user, password); err != nil {
		return err
	}
	fmt.Printf("Credentials stored in %s\n", secretsDir)
	return nil
}

// readPassword prompts on a terminal without echo, or reads one line from r.
func readPassword(r io.Reader, fromStdin bool, prompt string) (string, error) {
	if f, ok := r.(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("empty password")
	}
	return password, nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout SERVICE",
	Short: "Forget the stored credentials for an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		if _, _, err := secrets.Credentials(loadedSecrets, args[0]); err != nil {
			fmt.Printf("No stored credentials for %s\n", args[0])
			return nil
		}
		if err := secrets.Remove(secretsDir, args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed credentials for %s\n", args[0])
		return nil
	},
}

func init() {
	loginCmd.Flags().StringP("user", "u", "", "account user name (default: stored user)")
	loginCmd.Flags().Bool("password-stdin", false, "read the password from standard input")
	loginCmd.Flags().Bool("no-store", false, "verify the credentials without storing them")

	rootCmd.AddCommand(loginCmd, logoutCmd)
}
