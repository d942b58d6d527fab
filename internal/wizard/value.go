package wizard

import (
	"strings"
	"time"

	"github.com/agb-digital/onboarding/internal/validation"
)

// Value is one form field value. The concrete types are Text, Flag, OTPCode
// and ArtifactRef.
type Value interface {
	isValue()
}

// Text is a free-text or enumerated field
type Text string

// Flag is a checkbox
type Flag bool

// OTPCode holds one character per slot of a one-time code
type OTPCode [validation.OTPLength]string

// ArtifactRef points at an evidence artifact held by the capture layer.
// Only metadata travels with the wizard state.
type ArtifactRef struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	FileName   string    `json:"fileName"`
	MIMEType   string    `json:"mimeType"`
	Size       int64     `json:"size"`
	Source     string    `json:"source"`
	Facing     string    `json:"facing,omitempty"`
	CapturedAt time.Time `json:"capturedAt"`
}

func (Text) isValue()        {}
func (Flag) isValue()        {}
func (OTPCode) isValue()     {}
func (ArtifactRef) isValue() {}

// ParseOTP spreads s over the code slots. Missing slots stay empty and
// extra characters are dropped.
func ParseOTP(s string) OTPCode {
	var code OTPCode
	for i, r := range []rune(strings.TrimSpace(s)) {
		if i >= len(code) {
			break
		}
		code[i] = string(r)
	}
	return code
}

// String joins the slots
func (c OTPCode) String() string {
	return strings.Join(c[:], "")
}

// FormData maps field names to values
type FormData map[string]Value

// Text returns the text value of field, or "" for any other type
func (d FormData) Text(field string) string {
	v, _ := d[field].(Text)
	return string(v)
}

// Flag returns the checkbox value of field
func (d FormData) Flag(field string) bool {
	v, _ := d[field].(Flag)
	return bool(v)
}

// Code returns the one-time code slots of field
func (d FormData) Code(field string) [validation.OTPLength]string {
	v, _ := d[field].(OTPCode)
	return v
}

// Artifact returns the artifact reference stored in field
func (d FormData) Artifact(field string) (ArtifactRef, bool) {
	v, ok := d[field].(ArtifactRef)
	return v, ok
}

// HasArtifact reports whether field holds an artifact reference
func (d FormData) HasArtifact(field string) bool {
	_, ok := d.Artifact(field)
	return ok
}

// Texts returns every text field
func (d FormData) Texts() map[string]string {
	out := make(map[string]string, len(d))
	for k, v := range d {
		if t, ok := v.(Text); ok {
			out[k] = string(t)
		}
	}
	return out
}

func (d FormData) clone() FormData {
	out := make(FormData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

var _ validation.Form = FormData(nil)
