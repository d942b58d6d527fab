// Command onboardctl is the developer companion of the wizard service. It
// lists the flows, checks individual validation rules and drives a wizard in
// the terminal against a virtual camera. It can also query the banking API
// on behalf of an existing user.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agb-digital/onboarding/internal/validation"
	"github.com/agb-digital/onboarding/pkg/config"
	"github.com/agb-digital/onboarding/pkg/i18n"
	"github.com/agb-digital/onboarding/pkg/logger"
)

const cliName = "onboardctl"

// app carries what every subcommand needs once the root pre-run has loaded it
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	rules  *validation.Rules
	locale string
}

func preRun(a *app) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cliName)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		a.cfg = cfg

		if a.log == nil {
			a.log = logger.NewWithWriter(cmd.ErrOrStderr(), cliName, cfg.Server.Environment)
		}

		if !i18n.IsSupported(a.locale) {
			return fmt.Errorf("unsupported locale %q", a.locale)
		}

		phones := validation.DefaultPhoneTable()
		if path := cfg.Validation.PhoneRulesFile; path != "" {
			if phones, err = validation.LoadPhoneTable(path); err != nil {
				return err
			}
		}
		a.rules = validation.NewRules(phones, i18n.NewLocalizer(a.locale))
		return nil
	}
}

// newRootCommand builds the command tree. A nil logger writes to stderr.
func newRootCommand(log *logger.Logger) *cobra.Command {
	a := &app{log: log}

	root := &cobra.Command{
		Use:           cliName,
		Short:         "Inspect and drive the onboarding wizards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.locale, "locale", i18n.DefaultLocale, "message locale (fr or en)")
	root.PersistentPreRunE = preRun(a)

	root.AddCommand(flowsCommand(a))
	root.AddCommand(validateCommand(a))
	root.AddCommand(runCommand(a))
	root.AddCommand(facadeCommand(a))

	return root
}

func main() {
	if err := newRootCommand(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
