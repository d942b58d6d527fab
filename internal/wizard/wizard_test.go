package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agb-digital/onboarding/internal/validation"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func required(fields ...string) Validator {
	return func(d FormData) ErrorMap {
		errs := ErrorMap{}
		for _, f := range fields {
			if d.Text(f) == "" {
				errs[f] = f + " is required"
			}
		}
		return errs
	}
}

func hasArtifact(field string) Validator {
	return func(d FormData) ErrorMap {
		if !d.HasArtifact(field) {
			return ErrorMap{field: field + " is missing"}
		}
		return nil
	}
}

func otpComplete(field string) Validator {
	return func(d FormData) ErrorMap {
		if !validation.OTPComplete(d.Code(field)) {
			return ErrorMap{field: "incomplete"}
		}
		return nil
	}
}

func testDefinition(t *testing.T, opts ...DefinitionOption) *Definition {
	t.Helper()

	slot := func(field string) []EvidenceSlot {
		return []EvidenceSlot{{Field: field, Kind: ArtifactDocumentPhoto, StageKey: "identityDocument"}}
	}

	d, err := NewDefinition("test", []StepSpec{
		{ID: "name", Title: "steps.personal", Kind: FormStep{}, Fields: []string{"first"}, Validate: required("first")},
		{
			ID:    "doc",
			Title: "steps.identite",
			Kind: BranchStep{
				Selector: "docType",
				Branches: map[string][]SubStepSpec{
					"cni": {
						{ID: "recto", Slots: slot("recto"), Validate: hasArtifact("recto")},
						{ID: "verso", Slots: slot("verso"), Validate: hasArtifact("verso"), ClearOnRetreat: true},
					},
					"passport": {
						{ID: "passport", Slots: slot("passport"), Validate: hasArtifact("passport")},
					},
				},
			},
			Fields:   []string{"docType"},
			Validate: required("docType"),
		},
		{ID: "code", Kind: OTPStep{Field: "otp", TimerID: "otp", ResendAfter: 180 * time.Second}, Validate: otpComplete("otp"), Action: ActionRegister},
		{ID: "done", Kind: TerminalStep{}},
	}, opts...)
	require.NoError(t, err)
	return d
}

func artifact(id string) ArtifactRef {
	return ArtifactRef{ID: id, Kind: ArtifactDocumentPhoto, MIMEType: "image/jpeg", Size: 1024, Source: "camera"}
}

func TestAdvance_RequiredFieldBlocks(t *testing.T) {
	w := New(testDefinition(t))

	errs, err := w.Advance(context.Background())
	require.NoError(t, err)
	assert.Contains(t, errs, "first")

	s := w.State()
	assert.Equal(t, 0, s.StepIndex)
	assert.Equal(t, errs, s.Errors)
}

func TestAdvance_ValidInputMovesExactlyOnce(t *testing.T) {
	w := New(testDefinition(t))
	require.NoError(t, w.SetField("first", Text("Ahmed")))

	errs, err := w.Advance(context.Background())
	require.NoError(t, err)
	assert.Empty(t, errs)

	s := w.State()
	assert.Equal(t, 1, s.StepIndex)
	assert.Equal(t, 0, s.SubStepIndex)
	assert.Empty(t, s.Errors)
}

func TestSetField_ClearsOnlyThatFieldError(t *testing.T) {
	d := testDefinition(t)
	s := d.Start(time.Now())
	s.Errors = ErrorMap{"first": "required", "other": "bad"}

	next := d.SetField(s, "first", Text("x"))

	assert.Equal(t, ErrorMap{"other": "bad"}, next.Errors)
	assert.Len(t, s.Errors, 2, "input state is not mutated")
}

func TestOnScreen(t *testing.T) {
	d := testDefinition(t)
	s := d.Start(time.Now())

	assert.True(t, d.OnScreen(s, "first"))
	assert.False(t, d.OnScreen(s, "docType"))
	assert.False(t, d.OnScreen(s, "otp"))

	s.StepIndex = 1
	assert.True(t, d.OnScreen(s, "docType"))
	assert.False(t, d.OnScreen(s, "first"), "answers of a passed step are closed")
	assert.False(t, d.OnScreen(s, "recto"), "no branch selected yet")

	s = d.SetField(s, "docType", Text("cni"))
	assert.True(t, d.OnScreen(s, "recto"))
	assert.False(t, d.OnScreen(s, "verso"))

	s.SubStepIndex = 1
	assert.True(t, d.OnScreen(s, "verso"))
	assert.False(t, d.OnScreen(s, "recto"))
	assert.True(t, d.OnScreen(s, "docType"))

	s.StepIndex, s.SubStepIndex = 2, 0
	assert.True(t, d.OnScreen(s, "otp"))
}

func TestWizard_SetFieldsOnlyCurrentScreen(t *testing.T) {
	w := New(testDefinition(t))
	require.NoError(t, w.SetField("first", Text("Ahmed")))

	err := w.SetField("docType", Text("cni"))
	assert.ErrorIs(t, err, ErrFieldNotOnScreen)

	_, err = w.Advance(context.Background())
	require.NoError(t, err)

	err = w.SetField("first", Text("Karim"))
	assert.ErrorIs(t, err, ErrFieldNotOnScreen)

	// the selector is applied before the slot it opens
	require.NoError(t, w.SetFields(map[string]Value{
		"recto":   artifact("r1"),
		"docType": Text("cni"),
	}))
	s := w.State()
	assert.Equal(t, "cni", s.Data.Text("docType"))
	assert.True(t, s.Data.HasArtifact("recto"))

	err = w.SetFields(map[string]Value{
		"docType": Text("passport"),
		"first":   Text("Karim"),
	})
	assert.ErrorIs(t, err, ErrFieldNotOnScreen)

	after := w.State()
	assert.Equal(t, "cni", after.Data.Text("docType"), "nothing is stored when one field is rejected")
	assert.True(t, after.Data.HasArtifact("recto"))
	assert.Equal(t, "Ahmed", after.Data.Text("first"))
}

func TestBranch_SubStepsAndTotalSteps(t *testing.T) {
	ctx := context.Background()
	w := New(testDefinition(t))
	require.NoError(t, w.SetField("first", Text("Ahmed")))
	_, err := w.Advance(ctx)
	require.NoError(t, err)

	d := w.Definition()
	assert.Equal(t, 1, d.TotalSteps(w.State()), "no selection yet")

	require.NoError(t, w.SetBranch("cni"))
	assert.Equal(t, 2, d.TotalSteps(w.State()))

	errs, err := w.Advance(ctx)
	require.NoError(t, err)
	assert.Contains(t, errs, "recto")

	require.NoError(t, w.SetField("recto", artifact("r1")))
	errs, err = w.Advance(ctx)
	require.NoError(t, err)
	require.Empty(t, errs)
	assert.Equal(t, 1, w.State().SubStepIndex)

	_, sub := d.Current(w.State())
	require.NotNil(t, sub)
	assert.Equal(t, "verso", sub.ID)

	require.NoError(t, w.SetBranch("passport"))
	s := w.State()
	assert.Equal(t, 0, s.SubStepIndex)
	assert.Equal(t, 1, d.TotalSteps(s))
	assert.False(t, s.Data.HasArtifact("recto"), "fields of the previous branch are cleared")
}

func TestSetBranch_Errors(t *testing.T) {
	d := testDefinition(t)
	s := d.Start(time.Now())

	_, err := d.SetBranch(s, "cni")
	assert.ErrorIs(t, err, ErrNotBranching)

	s.StepIndex = 1
	_, err = d.SetBranch(s, "visa")
	assert.ErrorIs(t, err, ErrUnknownBranch)
}

func TestSetBranch_SameValueKeepsData(t *testing.T) {
	d := testDefinition(t)
	s := d.Start(time.Now())
	s.StepIndex = 1
	s, _ = d.SetBranch(s, "cni")
	s = d.SetField(s, "recto", artifact("r1"))
	s.SubStepIndex = 1

	next, err := d.SetBranch(s, "cni")
	require.NoError(t, err)
	assert.Equal(t, 0, next.SubStepIndex)
	assert.True(t, next.Data.HasArtifact("recto"))
}

func TestSetField_SelectorAppliesBranchReset(t *testing.T) {
	d := testDefinition(t)
	s := d.Start(time.Now())
	s.StepIndex = 1
	s, _ = d.SetBranch(s, "passport")
	s = d.SetField(s, "passport", artifact("p1"))

	next := d.SetField(s, "docType", Text("cni"))

	assert.False(t, next.Data.HasArtifact("passport"))
	assert.Equal(t, "cni", next.Data.Text("docType"))
}

func TestRetreat(t *testing.T) {
	d := testDefinition(t)

	t.Run("no-op on first screen", func(t *testing.T) {
		s := d.Start(time.Now())
		s.Data["first"] = Text("Ahmed")

		next := d.Retreat(s)
		if diff := cmp.Diff(s, next); diff != "" {
			t.Errorf("Retreat() changed state (-want +got):\n%s", diff)
		}
	})

	t.Run("leaving verso clears it", func(t *testing.T) {
		s := d.Start(time.Now())
		s.StepIndex = 1
		s, _ = d.SetBranch(s, "cni")
		s = d.SetField(s, "recto", artifact("r1"))
		s.SubStepIndex = 1
		s = d.SetField(s, "verso", artifact("v1"))

		next := d.Retreat(s)
		assert.Equal(t, 1, next.StepIndex)
		assert.Equal(t, 0, next.SubStepIndex)
		assert.False(t, next.Data.HasArtifact("verso"))
		assert.True(t, next.Data.HasArtifact("recto"))
	})

	t.Run("previous step lands on sub-step 0", func(t *testing.T) {
		s := d.Start(time.Now())
		s.StepIndex = 2

		next := d.Retreat(s)
		assert.Equal(t, 1, next.StepIndex)
		assert.Equal(t, 0, next.SubStepIndex)
	})

	t.Run("terminal suppresses navigation", func(t *testing.T) {
		s := d.Start(time.Now())
		s.StepIndex = d.LastIndex()

		assert.Equal(t, d.LastIndex(), d.Retreat(s).StepIndex)
		next, errs := d.Advance(s, time.Now())
		assert.Empty(t, errs)
		assert.Equal(t, d.LastIndex(), next.StepIndex)

		v := d.View(s, time.Now())
		assert.False(t, v.CanGoBack)
		assert.False(t, v.CanGoNext)
		assert.True(t, v.Terminal)
	})
}

func otpState(t *testing.T, d *Definition, clock *fakeClock) State {
	t.Helper()
	s := d.Start(clock.Now())
	s = d.SetField(s, "first", Text("Ahmed"))
	s, errs := d.Advance(s, clock.Now())
	require.Empty(t, errs)
	s, _ = d.SetBranch(s, "passport")
	s = d.SetField(s, "passport", artifact("p1"))
	s, errs = d.Advance(s, clock.Now())
	require.Empty(t, errs)
	require.Equal(t, 2, s.StepIndex)
	return s
}

func TestOTP_GatingIgnoresTimer(t *testing.T) {
	d := testDefinition(t)
	clock := newFakeClock()
	s := otpState(t, d, clock)

	s = d.SetField(s, "otp", ParseOTP("12345"))
	_, errs := d.Advance(s, clock.Now())
	assert.Contains(t, errs, "otp")

	s = d.SetField(s, "otp", ParseOTP("000000"))
	next, errs := d.Advance(s, clock.Now())
	assert.Empty(t, errs)
	assert.Equal(t, 3, next.StepIndex, "timer still running does not block advance")
}

func TestOTP_ResendTimer(t *testing.T) {
	d := testDefinition(t)
	clock := newFakeClock()
	s := otpState(t, d, clock)

	assert.Equal(t, 180, s.Remaining("otp", clock.Now()))
	assert.False(t, d.CanResend(s, clock.Now()))

	_, err := d.ResendOTP(s, clock.Now())
	assert.ErrorIs(t, err, ErrResendLocked)

	clock.Add(179*time.Second + 500*time.Millisecond)
	assert.Equal(t, 1, s.Remaining("otp", clock.Now()))

	clock.Add(time.Second)
	assert.True(t, d.CanResend(s, clock.Now()))

	s, err = d.ResendOTP(s, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 180, s.Remaining("otp", clock.Now()))
	assert.False(t, d.CanResend(s, clock.Now()))

	v := d.View(s, clock.Now())
	assert.Equal(t, map[string]int{"otp": 180}, v.Timers)
}

func TestResendOTP_NotOnOTPStep(t *testing.T) {
	d := testDefinition(t)
	_, err := d.ResendOTP(d.Start(time.Now()), time.Now())
	assert.ErrorIs(t, err, ErrNotOTPStep)
}

func TestJumpTo(t *testing.T) {
	clock := newFakeClock()

	t.Run("not allowed by default", func(t *testing.T) {
		d := testDefinition(t)
		s := otpState(t, d, clock)
		_, _, err := d.JumpTo(s, "name")
		assert.ErrorIs(t, err, ErrJumpNotAllowed)
	})

	t.Run("revalidates target", func(t *testing.T) {
		d := testDefinition(t, AllowJump())
		s := otpState(t, d, clock)
		delete(s.Data, "first")

		next, errs, err := d.JumpTo(s, "name")
		require.NoError(t, err)
		assert.Equal(t, 0, next.StepIndex)
		assert.Contains(t, errs, "first")
		assert.Equal(t, errs, next.Errors)
	})

	t.Run("only backwards", func(t *testing.T) {
		d := testDefinition(t, AllowJump())
		s := d.Start(clock.Now())

		_, _, err := d.JumpTo(s, "code")
		assert.ErrorIs(t, err, ErrJumpNotAllowed)
		_, _, err = d.JumpTo(s, "nope")
		assert.ErrorIs(t, err, ErrUnknownStep)
	})
}

func TestWizard_CommitterBlocksNavigation(t *testing.T) {
	clock := newFakeClock()
	release := make(chan struct{})
	entered := make(chan StepSpec, 1)

	w := New(testDefinition(t),
		WithClock(clock.Now),
		WithData(FormData{"first": Text("Ahmed")}),
		WithCommitter(func(ctx context.Context, step StepSpec, s State) error {
			entered <- step
			<-release
			return nil
		}),
	)

	done := make(chan error, 1)
	go func() {
		_, err := w.Advance(context.Background())
		done <- err
	}()

	step := <-entered
	assert.Equal(t, "name", step.ID)
	assert.True(t, w.State().Submitting)

	_, err := w.Advance(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, w.Retreat(), ErrBusy)
	assert.ErrorIs(t, w.SetField("first", Text("x")), ErrBusy)
	assert.True(t, w.View().Submitting)

	close(release)
	require.NoError(t, <-done)

	s := w.State()
	assert.False(t, s.Submitting)
	assert.Equal(t, 1, s.StepIndex)
	assert.Equal(t, "Ahmed", s.Data.Text("first"))
}

func TestWizard_RejectedCommitStaysInPlace(t *testing.T) {
	w := New(testDefinition(t),
		WithData(FormData{"first": Text("Ahmed")}),
		WithCommitter(func(context.Context, StepSpec, State) error {
			return Reject("account already exists")
		}),
	)

	errs, err := w.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ErrorMap{FormErrorKey: "account already exists"}, errs)

	s := w.State()
	assert.Equal(t, 0, s.StepIndex)
	assert.False(t, s.Submitting)
	assert.Equal(t, "Ahmed", s.Data.Text("first"))
}

func TestWizard_TransientCommitKeepsData(t *testing.T) {
	boom := errors.New("connection reset")
	calls := 0
	w := New(testDefinition(t),
		WithData(FormData{"first": Text("Ahmed")}),
		WithCommitter(func(context.Context, StepSpec, State) error {
			calls++
			if calls == 1 {
				return boom
			}
			return nil
		}),
	)

	_, err := w.Advance(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, w.State().StepIndex)

	errs, err := w.Advance(context.Background())
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, 1, w.State().StepIndex)
}

func TestNewDefinition_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		steps []StepSpec
	}{
		{"empty", nil},
		{"no terminal", []StepSpec{{ID: "a", Kind: FormStep{}}}},
		{"terminal not last", []StepSpec{{ID: "a", Kind: TerminalStep{}}, {ID: "b", Kind: TerminalStep{}}}},
		{"duplicate id", []StepSpec{{ID: "a", Kind: FormStep{}}, {ID: "a", Kind: TerminalStep{}}}},
		{"missing kind", []StepSpec{{ID: "a"}, {ID: "b", Kind: TerminalStep{}}}},
		{"empty branch", []StepSpec{
			{ID: "a", Kind: BranchStep{Selector: "s", Branches: map[string][]SubStepSpec{"x": nil}}},
			{ID: "b", Kind: TerminalStep{}},
		}},
		{"otp without timer", []StepSpec{{ID: "a", Kind: OTPStep{Field: "otp"}}, {ID: "b", Kind: TerminalStep{}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDefinition("bad", tt.steps)
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestParseOTP(t *testing.T) {
	assert.Equal(t, OTPCode{"1", "2", "3", "4", "5", "6"}, ParseOTP("1234567"))
	assert.Equal(t, OTPCode{"1", "2", "", "", "", ""}, ParseOTP("12"))
	assert.Equal(t, "123456", ParseOTP("123456").String())
}

func TestView_BranchFields(t *testing.T) {
	d := testDefinition(t)
	s := d.Start(time.Now())
	s.StepIndex = 1
	s, _ = d.SetBranch(s, "cni")

	v := d.View(s, time.Now())
	assert.Equal(t, "branch", v.Kind)
	assert.Equal(t, "recto", v.SubStepID)
	assert.Equal(t, []string{"cni", "passport"}, v.Branches)
	assert.Equal(t, []string{"docType"}, v.Fields)
	require.Len(t, v.Evidence, 1)
	assert.Equal(t, "recto", v.Evidence[0].Field)
	assert.Equal(t, 2, v.TotalSubSteps)

	s.SubStepIndex = 1
	v = d.View(s, time.Now())
	assert.Empty(t, v.Fields)
	require.Len(t, v.Evidence, 1)
	assert.Equal(t, "verso", v.Evidence[0].Field)
	assert.Equal(t, 2, v.SubStepNumber)
}

func TestCompletesStep(t *testing.T) {
	d := testDefinition(t)
	s := d.Start(time.Now())
	assert.True(t, d.CompletesStep(s))

	s.StepIndex = 1
	assert.True(t, d.CompletesStep(s), "no branch selected yet is a single screen")

	s.Data["docType"] = Text("cni")
	assert.False(t, d.CompletesStep(s))
	s.SubStepIndex = 1
	assert.True(t, d.CompletesStep(s))

	s.Data["docType"] = Text("passport")
	s.SubStepIndex = 0
	assert.True(t, d.CompletesStep(s))
}
