// Package i18n provides internationalization support for error messages.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// BaseLocale is the fallback locale for every lookup.
const BaseLocale = "en-US"

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// ReasonKey is the metadata key that selects a reason-specific variant of a
// message, stored under "<code>/<reason>".
const ReasonKey = "Reason"

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{
		"en-US": NewCatalog("en-US", enUSMessages),
		"de-DE": NewCatalog("de-DE", deDEMessages),
	}
	matcherOnce sync.Once
	matcher     language.Matcher
	matcherTags []string
)

// GetCatalog returns the best catalog for a locale or Accept-Language value.
// Falls back to en-US when nothing matches.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}
	if c, ok := lookupCatalog(requested); ok {
		return c
	}

	tags, _, err := language.ParseAcceptLanguage(requested)
	if err != nil || len(tags) == 0 {
		c, _ := lookupCatalog(BaseLocale)
		return c
	}
	m, supported := localeMatcher()
	_, index, confidence := m.Match(tags...)
	if confidence == language.No {
		c, _ := lookupCatalog(BaseLocale)
		return c
	}
	c, ok := lookupCatalog(supported[index])
	if !ok {
		c, _ = lookupCatalog(BaseLocale)
	}
	return c
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
//
// When metadata carries a Reason and "<code>/<reason>" exists, that variant
// wins. Falls back to the code itself if no template is found.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	if metadata == nil {
		metadata = map[string]string{}
	}
	tmpl, ok := "", false
	if reason := metadata[ReasonKey]; reason != "" {
		tmpl, ok = c.messages[code+"/"+reason]
	}
	if !ok {
		tmpl, ok = c.messages[code]
	}
	if !ok {
		return code
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// RegisterCatalog registers a catalog for the given locale, replacing any
// existing one. Intended for init or single-threaded test setup.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog creates a new catalog with the given locale and messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{
		locale:   locale,
		messages: cloned,
	}
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}

// localeMatcher is built from the shipped catalogs only, the base locale first
// so it is the matcher's default.
func localeMatcher() (language.Matcher, []string) {
	matcherOnce.Do(func() {
		matcherTags = []string{BaseLocale, "de-DE"}
		tags := make([]language.Tag, 0, len(matcherTags))
		for _, locale := range matcherTags {
			tags = append(tags, language.MustParse(locale))
		}
		matcher = language.NewMatcher(tags)
	})
	return matcher, matcherTags
}
