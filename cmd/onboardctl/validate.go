package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agb-digital/onboarding/internal/validation"
	"github.com/agb-digital/onboarding/pkg/i18n"
)

var errInvalid = errors.New("invalid")

func validateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a single value against a validation rule",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "phone <country-code> <number>",
		Short: "Check a phone number against the rule of its country",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			phones := a.rules.Phones()
			rule := phones.Rule(args[0])
			if !phones.Valid(args[0], args[1]) {
				fmt.Fprintf(cmd.OutOrStdout(), "+%s %s: invalid, expected something like %s\n", args[0], args[1], rule.Example)
				return errInvalid
			}
			fmt.Fprintf(cmd.OutOrStdout(), "+%s %s: valid\n", args[0], args[1])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "email <address>",
		Short: "Check an email address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(cmd, args[0], validation.Email(args[0]))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "postal-code <code>",
		Short: "Check a five digit postal code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(cmd, args[0], validation.PostalCode(args[0]))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "password <password>",
		Short: "Check the password policy and print the strength gauge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strength := validation.PasswordStrength(args[0])
			label := strength.String()
			if key := strength.LabelKey(); key != "" {
				label = i18n.NewLocalizer(a.locale).T(key)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "strength: %s (%.2f)\n", label, strength.Gauge())
			return report(cmd, "password", validation.Password(args[0]))
		},
	})

	return cmd
}

func report(cmd *cobra.Command, value string, ok bool) error {
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: invalid\n", value)
		return errInvalid
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", value)
	return nil
}
