package wizard

import (
	"sort"
	"time"
)

// View is what a client needs to render the current screen
type View struct {
	Flow          string         `json:"flow"`
	StepID        string         `json:"stepId"`
	SubStepID     string         `json:"subStepId,omitempty"`
	Kind          string         `json:"kind"`
	Title         string         `json:"title"`
	StepIndex     int            `json:"stepIndex"`
	StepCount     int            `json:"stepCount"`
	SubStepNumber int            `json:"subStepNumber"`
	TotalSubSteps int            `json:"totalSubSteps"`
	Fields        []string       `json:"fields"`
	Evidence      []EvidenceSlot `json:"evidence,omitempty"`
	Selector      string         `json:"selector,omitempty"`
	Branches      []string       `json:"branches,omitempty"`
	Errors        ErrorMap       `json:"errors"`
	Timers        map[string]int `json:"timers,omitempty"`
	CanResend     bool           `json:"canResend"`
	CanGoBack     bool           `json:"canGoBack"`
	CanGoNext     bool           `json:"canGoNext"`
	Terminal      bool           `json:"terminal"`
	Submitting    bool           `json:"submitting"`
}

// View projects s for rendering. Titles are i18n keys.
func (d *Definition) View(s State, now time.Time) View {
	step, sub := d.Current(s)
	terminal := d.IsTerminal(s)

	v := View{
		Flow:          d.name,
		StepID:        step.ID,
		Kind:          KindName(step.Kind),
		Title:         step.Title,
		StepIndex:     s.StepIndex,
		StepCount:     len(d.steps),
		SubStepNumber: s.SubStepIndex + 1,
		TotalSubSteps: d.TotalSteps(s),
		Fields:        append([]string{}, step.Fields...),
		Evidence:      step.Slots(),
		Errors:        s.Errors.clone(),
		Terminal:      terminal,
		Submitting:    s.Submitting,
		CanGoBack:     !terminal && !s.Submitting && (s.StepIndex > 0 || s.SubStepIndex > 0),
		CanGoNext:     !terminal && !s.Submitting,
		CanResend:     d.CanResend(s, now),
	}

	if b, ok := step.Kind.(BranchStep); ok {
		v.Selector = b.Selector
		for value := range b.Branches {
			v.Branches = append(v.Branches, value)
		}
		sort.Strings(v.Branches)
	}

	if s.SubStepIndex > 0 {
		v.Fields = nil
		v.Evidence = nil
	}

	if sub != nil {
		v.SubStepID = sub.ID
		v.Title = sub.Title
		v.Fields = append(v.Fields, sub.Fields...)
		v.Evidence = append(append([]EvidenceSlot{}, v.Evidence...), sub.Slots...)
	}

	if otp, ok := step.Kind.(OTPStep); ok {
		if !contains(v.Fields, otp.Field) {
			v.Fields = append(v.Fields, otp.Field)
		}
		v.Timers = map[string]int{otp.TimerID: s.Remaining(otp.TimerID, now)}
	}

	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
