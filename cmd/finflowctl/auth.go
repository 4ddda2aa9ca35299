package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/finflow/authcore/jwt"
	"github.com/finflow/authcore/session"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a username and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("FINFLOW_PASSWORD")
			}
			core, err := a.core()
			if err != nil {
				return err
			}
			defer core.Close()

			res, err := core.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(map[string]string{"username": res.Username, "email": res.Email, "state": core.Session().State().Phase.String()})
			}
			fmt.Fprintf(a.out, "Logged in as %s (%s)\n", res.Username, res.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (default $FINFLOW_PASSWORD)")
	return cmd
}

func newGoogleLoginCmd(a *app) *cobra.Command {
	var idToken string
	cmd := &cobra.Command{
		Use:   "google-login",
		Short: "Log in with a Google ID token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := a.core()
			if err != nil {
				return err
			}
			defer core.Close()

			res, err := core.LoginWithGoogle(cmd.Context(), idToken)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s (%s)\n", res.Username, res.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&idToken, "id-token", "", "Google ID token")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := a.core()
			if err != nil {
				return err
			}
			defer core.Close()

			if err := core.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored refresh token for a new access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := a.core()
			if err != nil {
				return err
			}
			defer core.Close()

			if err := core.Session().RefreshSession(cmd.Context()); err != nil {
				return fmt.Errorf("refresh failed, log in again: %w", err)
			}
			fmt.Fprintln(a.out, "Session refreshed")
			return nil
		},
	}
}

type statusOutput struct {
	State    string `json:"state"`
	Subject  string `json:"subject,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Restore the stored session and show its state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := a.core()
			if err != nil {
				return err
			}
			defer core.Close()

			core.Session().RestoreSession(cmd.Context())
			state := core.Session().State()

			out := statusOutput{State: state.Phase.String()}
			if state.Phase == session.PhaseAuthenticated {
				if sub, ok := jwt.SubjectHint(state.Token); ok {
					out.Subject = sub
				}
			}
			if user, ok := core.Session().CurrentUser(); ok {
				out.Username = user.Username
				out.Email = user.Email
			}

			if a.jsonOutput {
				return a.printJSON(out)
			}
			fmt.Fprintf(a.out, "State:    %s\n", out.State)
			if out.Username != "" {
				fmt.Fprintf(a.out, "User:     %s (%s)\n", out.Username, out.Email)
			}
			if out.Subject != "" {
				fmt.Fprintf(a.out, "Subject:  %s\n", out.Subject)
			}
			if !state.IsAuthenticated() {
				return errors.New("not logged in")
			}
			return nil
		},
	}
}
