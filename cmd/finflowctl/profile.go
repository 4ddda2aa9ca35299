package main

import (
	"fmt"
	"strings"

	"github.com/finflow/authcore/identity"
	"github.com/spf13/cobra"
)

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the current user's profile, from cache when offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := a.core()
			if err != nil {
				return err
			}
			defer core.Close()

			profile, err := core.Profile(cmd.Context())
			if err != nil {
				return err
			}
			return a.printProfile(profile)
		},
	}

	var req identity.UpdateProfileRequest
	update := &cobra.Command{
		Use:   "update",
		Short: "Update first name, last name and date of birth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := a.core()
			if err != nil {
				return err
			}
			defer core.Close()

			profile, err := core.UpdateProfile(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.printProfile(profile)
		},
	}
	update.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	update.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	update.Flags().StringVar(&req.DOB, "dob", "", "date of birth (YYYY-MM-DD)")
	cmd.AddCommand(update)
	return cmd
}

func (a *app) printProfile(p identity.UserProfile) error {
	if a.jsonOutput {
		return a.printJSON(p)
	}
	name := strings.TrimSpace(deref(p.FirstName) + " " + deref(p.LastName))
	fmt.Fprintf(a.out, "ID:       %s\n", p.ID)
	fmt.Fprintf(a.out, "Username: %s\n", p.Username)
	fmt.Fprintf(a.out, "Email:    %s\n", p.Email)
	if name != "" {
		fmt.Fprintf(a.out, "Name:     %s\n", name)
	}
	if p.DOB != nil {
		fmt.Fprintf(a.out, "Born:     %s\n", *p.DOB)
	}
	if len(p.Roles) > 0 {
		fmt.Fprintf(a.out, "Roles:    %s\n", strings.Join(p.Roles, ", "))
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func newPasswordResetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password-reset",
		Short: "Reset a forgotten password with an emailed one-time code",
	}

	var email string
	request := &cobra.Command{
		Use:   "request",
		Short: "Email a one-time code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := a.core()
			if err != nil {
				return err
			}
			defer core.Close()

			exists, err := core.CheckUserExistence(cmd.Context(), email)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("no account uses %s", email)
			}
			if err := core.SendPasswordResetOTP(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Code sent to %s\n", email)
			return nil
		},
	}
	request.Flags().StringVar(&email, "email", "", "account email")

	var otp, password, confirm string
	confirmCmd := &cobra.Command{
		Use:   "confirm",
		Short: "Verify the code and set a new password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := a.core()
			if err != nil {
				return err
			}
			defer core.Close()

			if confirm == "" {
				confirm = password
			}
			verified, err := core.VerifyPasswordResetOTP(cmd.Context(), email, otp)
			if err != nil {
				return err
			}
			if err := core.ResetPassword(cmd.Context(), password, confirm, verified.RegistrationToken); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Password updated")
			return nil
		},
	}
	confirmCmd.Flags().StringVar(&email, "email", "", "account email")
	confirmCmd.Flags().StringVar(&otp, "code", "", "one-time code from the email")
	confirmCmd.Flags().StringVar(&password, "password", "", "new password")
	confirmCmd.Flags().StringVar(&confirm, "confirm", "", "new password again (default --password)")

	cmd.AddCommand(request, confirmCmd)
	return cmd
}
