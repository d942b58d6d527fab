package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agb-digital/onboarding/internal/capture"
	"github.com/agb-digital/onboarding/internal/onboarding/events"
	"github.com/agb-digital/onboarding/internal/onboarding/service"
	"github.com/agb-digital/onboarding/internal/persistence"
	"github.com/agb-digital/onboarding/internal/session"
	"github.com/agb-digital/onboarding/internal/wizard"
	apperrors "github.com/agb-digital/onboarding/pkg/errors"
	"github.com/agb-digital/onboarding/pkg/i18n"
)

var (
	errQuit = errors.New("quit")
	errBack = errors.New("back")
)

type runOptions struct {
	facadeURL string
	quality   int
	video     time.Duration
	deny      []string
}

func runCommand(a *app) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <flow>",
		Short: "Walk through a wizard in the terminal",
		Long: `Walk through a wizard in the terminal. Each field is prompted in turn;
an empty answer keeps the current value, "<" goes back one screen and "q"
abandons the session. Camera slots are filled by a virtual camera, other
evidence slots ask for a file path. Submissions go to the configured façade.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.facadeURL, "facade-url", "", "façade base URL (defaults to the configured one)")
	cmd.Flags().IntVar(&opts.quality, "jpeg-quality", 0, "JPEG quality of camera captures (defaults to the configured one)")
	cmd.Flags().DurationVar(&opts.video, "video", 0, "length of recorded video selfies (defaults to the configured ceiling)")
	cmd.Flags().StringSliceVar(&opts.deny, "deny-camera", nil, "camera facings the virtual camera refuses (front, back, any)")

	return cmd
}

func (a *app) run(cmd *cobra.Command, flow string, opts runOptions) error {
	ctx := i18n.WithLocale(cmd.Context(), a.locale)

	facade := a.facade(opts.facadeURL)

	store := persistence.NewMemoryStore(time.Minute)
	defer store.Close()
	bridge := persistence.NewBridge(store,
		persistence.WithTTL(a.cfg.Persistence.TTL),
		persistence.WithPayloads(a.cfg.Persistence.PersistPayloads),
		persistence.WithLogger(a.log),
	)

	svc, err := service.New(
		a.rules,
		bridge,
		facade,
		session.NewManager(&a.cfg.JWT),
		events.NewEmitter(nil, nil, a.log),
		service.Config{
			OTPResend:           time.Duration(a.cfg.Wizard.OTPResendSeconds) * time.Second,
			MaxUploadBytes:      a.cfg.Capture.MaxUploadBytes,
			ReviewAllowedEmails: a.cfg.Wizard.ReviewAllowedEmails,
		},
		a.log,
	)
	if err != nil {
		return err
	}

	created, err := svc.CreateSession(ctx, flow, "")
	if err != nil {
		return err
	}
	sess, err := svc.Authenticate(created.Token.Token)
	if err != nil {
		return err
	}

	camera := capture.NewVirtualCamera()
	for _, f := range opts.deny {
		if camera.Deny == nil {
			camera.Deny = make(map[capture.Facing]error)
		}
		camera.Deny[capture.ParseFacing(f)] = capture.ErrPermissionDenied
	}
	quality := a.cfg.Capture.JPEGQuality
	if opts.quality > 0 {
		quality = opts.quality
	}
	video := a.cfg.Capture.VideoMaxDuration
	if opts.video > 0 {
		video = opts.video
	}

	d := &driver{
		svc:    svc,
		sess:   sess,
		camera: capture.NewAdapter(camera, capture.WithJPEGQuality(quality), capture.WithLogger(a.log)),
		video:  video,
		loc:    i18n.NewLocalizer(a.locale),
		in:     bufio.NewScanner(cmd.InOrStdin()),
		out:    cmd.OutOrStdout(),
	}
	return d.loop(ctx, created.View)
}

// driver renders screens on out and reads answers from in
type driver struct {
	svc    *service.Service
	sess   *service.Session
	camera *capture.Adapter
	video  time.Duration
	loc    *i18n.Localizer
	in     *bufio.Scanner
	out    io.Writer
}

func (d *driver) loop(ctx context.Context, view service.View) error {
	for {
		d.render(view)
		if view.Terminal {
			fmt.Fprintln(d.out, "done")
			return nil
		}

		next, err := d.screen(ctx, view)
		switch {
		case errors.Is(err, errQuit):
			fmt.Fprintln(d.out, "session abandoned")
			return d.svc.Abandon(ctx, d.sess)
		case errors.Is(err, errBack):
			next, err = d.svc.Back(ctx, d.sess)
		}
		if err != nil {
			d.printError(ctx, err)
			if next, err = d.svc.View(ctx, d.sess); err != nil {
				return err
			}
		}
		view = next
	}
}

func (d *driver) render(v service.View) {
	fmt.Fprintf(d.out, "\n[%d/%d] %s", v.StepIndex+1, v.StepCount, v.TitleText)
	if v.TotalSubSteps > 1 {
		fmt.Fprintf(d.out, " (%d/%d)", v.SubStepNumber, v.TotalSubSteps)
	}
	fmt.Fprintln(d.out)

	for timer, seconds := range v.Timers {
		fmt.Fprintf(d.out, "  %s: %ds before a new code can be sent\n", timer, seconds)
	}
	if v.PasswordStrength != "" {
		fmt.Fprintf(d.out, "  %s\n", v.PasswordStrength)
	}
	for _, field := range sortedKeys(v.Errors) {
		fmt.Fprintf(d.out, "  ! %s: %s\n", field, v.Errors[field])
	}
}

// screen answers the current screen and advances
func (d *driver) screen(ctx context.Context, v service.View) (service.View, error) {
	if sel := v.Selector; sel != "" && contains(v.Fields, sel) {
		current, _ := v.Values[sel].(string)
		answer, err := d.prompt(fmt.Sprintf("%s (%s)", sel, strings.Join(v.Branches, "|")), current)
		if err != nil {
			return service.View{}, err
		}
		if answer != "" && answer != current {
			return d.svc.SetBranch(ctx, d.sess, answer)
		}
	}

	fields := make(map[string]any)
	for _, field := range v.Fields {
		if field == v.Selector {
			continue
		}
		current := fmt.Sprint(v.Values[field])
		if v.Values[field] == nil {
			current = ""
		}
		answer, err := d.prompt(field, current)
		if err != nil {
			return service.View{}, err
		}
		if answer != "" {
			fields[field] = coerce(answer)
		}
	}
	if len(fields) > 0 {
		if _, err := d.svc.SetFields(ctx, d.sess, fields); err != nil {
			return service.View{}, err
		}
	}

	for _, slot := range v.Evidence {
		if _, done := v.Staged[slot.Field]; done {
			continue
		}
		if err := d.evidence(ctx, slot); err != nil {
			return service.View{}, err
		}
	}

	return d.svc.Advance(ctx, d.sess)
}

// evidence fills one slot from the virtual camera, or from a file when the
// slot has no camera or every camera request fails
func (d *driver) evidence(ctx context.Context, slot wizard.EvidenceSlot) error {
	if slot.Camera {
		art, err := d.capture(ctx, slot)
		if err == nil {
			fmt.Fprintf(d.out, "  %s: captured %s (%d bytes, %s)\n",
				slot.Field, art.FileName(), art.Size(), d.loc.T(art.Facing().LabelKey()))
			_, err = d.svc.UploadEvidence(ctx, d.sess, service.EvidenceUpload{
				Field:        slot.Field,
				FileName:     art.FileName(),
				DeclaredType: art.MIMEType(),
				Source:       art.Source(),
				Facing:       art.Facing(),
				Body:         art.Reader(),
			})
			return err
		}

		var unavailable *capture.UnavailableError
		if !errors.As(err, &unavailable) {
			return err
		}
		for _, attempt := range unavailable.Attempts {
			fmt.Fprintf(d.out, "  %s\n", d.loc.T(attempt.MessageKey()))
		}
	}

	path, err := d.prompt(slot.Field+" file", "")
	if err != nil || path == "" {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = d.svc.UploadEvidence(ctx, d.sess, service.EvidenceUpload{
		Field:    slot.Field,
		FileName: filepath.Base(path),
		Source:   capture.SourceFilePicker,
		Body:     f,
	})
	return err
}

func (d *driver) capture(ctx context.Context, slot wizard.EvidenceSlot) (*capture.Artifact, error) {
	if err := d.camera.Start(ctx, capture.ParseFacing(slot.Facing)); err != nil {
		return nil, err
	}
	defer d.camera.Stop()

	if slot.Kind != wizard.ArtifactSelfieVideo {
		return d.camera.Capture(ctx, slot.Kind)
	}

	rec, err := d.camera.StartRecording(ctx, slot.Kind, d.video)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(d.out, "  recording %s...\n", d.video)
	return rec.Wait()
}

func (d *driver) prompt(label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(d.out, "  %s [%s]: ", label, current)
	} else {
		fmt.Fprintf(d.out, "  %s: ", label)
	}

	if !d.in.Scan() {
		if err := d.in.Err(); err != nil {
			return "", err
		}
		return "", errQuit
	}
	answer := strings.TrimSpace(d.in.Text())
	switch answer {
	case "q":
		return "", errQuit
	case "<":
		return "", errBack
	}
	return answer, nil
}

func (d *driver) printError(ctx context.Context, err error) {
	var appErr *apperrors.AppError
	if !apperrors.As(err, &appErr) {
		fmt.Fprintf(d.out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(d.out, "%s: %s\n", appErr.Code, appErr.Localize(ctx))
	for _, field := range sortedKeys(appErr.Details) {
		fmt.Fprintf(d.out, "  ! %s: %s\n", field, appErr.Details[field])
	}
}

// coerce turns checkbox answers into flags
func coerce(answer string) any {
	switch strings.ToLower(answer) {
	case "true", "yes", "oui":
		return true
	case "false", "no", "non":
		return false
	}
	return answer
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedKeys[M ~map[string]string](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
