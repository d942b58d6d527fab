package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agb-digital/onboarding/internal/submission"
)

func (a *app) facade(baseURL string) *submission.Client {
	if baseURL == "" {
		baseURL = a.cfg.Facade.BaseURL
	}
	return submission.New(submission.Config{
		BaseURL:       baseURL,
		Timeout:       a.cfg.Facade.Timeout,
		UploadTimeout: a.cfg.Facade.UploadTimeout,
		MaxRetries:    a.cfg.Facade.MaxRetries,
	}, submission.WithLogger(a.log.WithComponent("facade")))
}

func printEnvelope[T any](w io.Writer, data T, err error) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(submission.Normalize(data, err)); encErr != nil {
		return encErr
	}
	return err
}

func facadeCommand(a *app) *cobra.Command {
	var (
		baseURL string
		token   string
	)

	cmd := &cobra.Command{
		Use:   "facade",
		Short: "Query the banking API with an existing bearer token",
	}
	cmd.PersistentFlags().StringVar(&baseURL, "facade-url", "", "façade base URL (defaults to the configured one)")
	cmd.PersistentFlags().StringVar(&token, "token", "", "bearer token of the user")

	sess := func() submission.Session { return submission.Session{Token: token} }

	cmd.AddCommand(&cobra.Command{
		Use:   "profile",
		Short: "Show the user behind the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.facade(baseURL).Profile(cmd.Context(), sess())
			return printEnvelope(cmd.OutOrStdout(), user, err)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "progress",
		Short: "Show the pipeline stages of the submitted application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			progress, err := a.facade(baseURL).ApplicationProgress(cmd.Context(), sess())
			if err != nil {
				return printEnvelope(cmd.OutOrStdout(), progress, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%.0f%% complete, stage %d of %d\n", progress.Percent(), progress.Current(), len(submission.ProgressOrder))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, step := range submission.ProgressOrder {
				fmt.Fprintf(tw, "%s\t%s\n", step, progress.Status(step))
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "accounts",
		Short: "List the user's accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.facade(baseURL).Accounts(cmd.Context(), sess())
			return printEnvelope(cmd.OutOrStdout(), accounts, err)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "transactions",
		Short: "List the user's transactions with signed amounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := a.facade(baseURL).Transactions(cmd.Context(), sess())
			if err != nil {
				return printEnvelope(cmd.OutOrStdout(), txs, err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			for _, tx := range txs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t\n", tx.CreatedAt, tx.Signed().StringFixed(2), tx.Description)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "notifications",
		Short: "List process notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, err := a.facade(baseURL).Notifications(cmd.Context(), sess())
			return printEnvelope(cmd.OutOrStdout(), notes, err)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "offers",
		Short: "List product recommendations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			offers, err := a.facade(baseURL).Offers(cmd.Context(), sess())
			return printEnvelope(cmd.OutOrStdout(), offers, err)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message to the assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := a.facade(baseURL).Chat(cmd.Context(), sess(), strings.Join(args, " "), nil)
			return printEnvelope(cmd.OutOrStdout(), reply, err)
		},
	})

	return cmd
}
