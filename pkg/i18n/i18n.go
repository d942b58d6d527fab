package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"strings"
	"sync"
)

//go:embed messages/*.json
var messagesFS embed.FS

// Supported locales
const (
	LocaleFrench  = "fr"
	LocaleEnglish = "en"
	DefaultLocale = LocaleFrench
)

var supported = []string{LocaleFrench, LocaleEnglish}

type localeKey struct{}

var (
	messages     map[string]map[string]any
	messagesOnce sync.Once
)

func loadMessages() {
	messagesOnce.Do(func() {
		messages = make(map[string]map[string]any, len(supported))

		for _, locale := range supported {
			data, err := messagesFS.ReadFile("messages/" + locale + ".json")
			if err != nil {
				continue
			}

			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			messages[locale] = msg
		}
	})
}

// Localizer resolves dot-notation message keys for one locale
type Localizer struct {
	locale string
}

// NewLocalizer creates a localizer, falling back to the default locale for
// anything unsupported.
func NewLocalizer(locale string) *Localizer {
	loadMessages()

	if !IsSupported(locale) {
		locale = DefaultLocale
	}
	return &Localizer{locale: locale}
}

// LocalizerFromContext creates a localizer from the locale stored in ctx
func LocalizerFromContext(ctx context.Context) *Localizer {
	return NewLocalizer(GetLocaleFromContext(ctx))
}

// T translates a message key. {name} placeholders are replaced from params.
// Unknown keys are returned unchanged.
func (l *Localizer) T(key string, params ...map[string]string) string {
	msg := lookup(messages[l.locale], key)
	if msg == "" && l.locale != DefaultLocale {
		msg = lookup(messages[DefaultLocale], key)
	}
	if msg == "" {
		return key
	}

	if len(params) > 0 {
		for k, v := range params[0] {
			msg = strings.ReplaceAll(msg, "{"+k+"}", v)
		}
	}
	return msg
}

// Locale returns the localizer's locale
func (l *Localizer) Locale() string {
	return l.locale
}

func lookup(tree map[string]any, key string) string {
	if tree == nil {
		return ""
	}

	parts := strings.Split(key, ".")
	current := tree
	for i, part := range parts {
		if i == len(parts)-1 {
			str, _ := current[part].(string)
			return str
		}
		nested, ok := current[part].(map[string]any)
		if !ok {
			return ""
		}
		current = nested
	}
	return ""
}

// IsSupported reports whether a catalogue exists for locale
func IsSupported(locale string) bool {
	for _, s := range supported {
		if s == locale {
			return true
		}
	}
	return false
}

// WithLocale adds locale to context
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// GetLocaleFromContext retrieves locale from context
func GetLocaleFromContext(ctx context.Context) string {
	if locale, ok := ctx.Value(localeKey{}).(string); ok && locale != "" {
		return locale
	}
	return DefaultLocale
}

// ParseAcceptLanguage returns the first supported language listed in an
// Accept-Language header. Quality weights are ignored; browsers already
// send languages in preference order.
func ParseAcceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		lang := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		if IsSupported(lang) {
			return lang
		}
	}
	return DefaultLocale
}

// T translates using the default locale
func T(key string, params ...map[string]string) string {
	return NewLocalizer(DefaultLocale).T(key, params...)
}

// TFromContext translates using locale from context
func TFromContext(ctx context.Context, key string, params ...map[string]string) string {
	return LocalizerFromContext(ctx).T(key, params...)
}
