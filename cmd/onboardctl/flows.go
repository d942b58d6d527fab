package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/agb-digital/onboarding/internal/wizard"
	"github.com/agb-digital/onboarding/internal/wizard/flows"
	"github.com/agb-digital/onboarding/pkg/i18n"
)

func (a *app) registry() (*flows.Registry, error) {
	return flows.NewRegistry(a.rules, time.Duration(a.cfg.Wizard.OTPResendSeconds)*time.Second)
}

func flowsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flows",
		Short: "Inspect the wizard definitions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the available flows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			for _, name := range reg.Names() {
				def, _ := reg.Get(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d steps\n", name, len(def.Steps()))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <flow>",
		Short: "Print the steps of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			def, ok := reg.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown flow %q (available: %s)", args[0], strings.Join(reg.Names(), ", "))
			}

			loc := i18n.NewLocalizer(a.locale)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tSTEP\tKIND\tTITLE\tFIELDS\tACTION")
			for i, step := range def.Steps() {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					i+1, step.ID, wizard.KindName(step.Kind), loc.T(step.Title),
					strings.Join(stepFields(step), ","), step.Action)

				branch, ok := step.Kind.(wizard.BranchStep)
				if !ok {
					continue
				}
				values := make([]string, 0, len(branch.Branches))
				for v := range branch.Branches {
					values = append(values, v)
				}
				sort.Strings(values)
				for _, v := range values {
					for _, sub := range branch.Branches[v] {
						fmt.Fprintf(tw, "\t  %s=%s\t%s\t%s\t%s\t\n",
							branch.Selector, v, sub.ID, loc.T(sub.Title), strings.Join(subFields(sub), ","))
					}
				}
			}
			return tw.Flush()
		},
	})

	return cmd
}

func stepFields(step wizard.StepSpec) []string {
	out := append([]string{}, step.Fields...)
	for _, slot := range step.Slots() {
		out = append(out, slot.Field+"*")
	}
	return out
}

func subFields(sub wizard.SubStepSpec) []string {
	out := append([]string{}, sub.Fields...)
	for _, slot := range sub.Slots {
		out = append(out, slot.Field+"*")
	}
	return out
}
