package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrlokans/library/internal/config"
	"github.com/mrlokans/library/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default if no command given)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			entrypoint.Run(config.NewConfig(), Version)
		},
	}

	root := &cobra.Command{
		Use:           "library",
		Short:         "Library circulation backend",
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		Run:           serve.Run,
	}

	root.AddCommand(serve, newSweepOverdueCommand(), newCreateAdminCommand())
	return root
}

func newSweepOverdueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Email readers about overdue loans once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := entrypoint.SweepOnce(ctx, config.NewConfig())
			if err != nil {
				return err
			}
			fmt.Printf("Overdue sweep done: %d candidates, %d sent, %d failed in %s\n",
				result.Candidates, result.Sent, result.Failed, result.Duration)
			if result.Failed > 0 {
				return fmt.Errorf("%d notices failed, see overdue_email_failures", result.Failed)
			}
			return nil
		},
	}
}

func newCreateAdminCommand() *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account, or promote an existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			confirm, err := readPassword("Repeat password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			if password != confirm {
				return errors.New("passwords do not match")
			}

			user, err := entrypoint.CreateAdmin(context.Background(), config.NewConfig(), email, name, password)
			if err != nil {
				return err
			}
			fmt.Printf("Administrator %s (%s) is ready\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "administrator email")
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// readPassword reads a password from the terminal without echoing it.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
