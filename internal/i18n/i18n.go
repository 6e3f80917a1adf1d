// Package i18n localizes user-facing notifications. Message catalogs are
// embedded YAML files, one per language.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// DefaultLang is used when no language is configured.
const DefaultLang = "en"

// Catalog translates message IDs into one language. Safe for concurrent use.
type Catalog struct {
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	lang      string
}

// New loads the embedded catalogs and returns a Catalog for lang.
// Unknown languages fall back to English message by message.
func New(lang string) (*Catalog, error) {
	if lang == "" {
		lang = DefaultLang
	}
	if _, err := language.Parse(lang); err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", lang, err)
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile(path.Join("locales", f.Name()))
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", f.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, f.Name()); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", f.Name(), err)
		}
	}

	return &Catalog{
		bundle:    bundle,
		localizer: i18n.NewLocalizer(bundle, lang, DefaultLang),
		lang:      lang,
	}, nil
}

// Lang returns the configured language.
func (c *Catalog) Lang() string {
	return c.lang
}

// T translates id, filling its template with data. A missing message
// yields the id itself.
func (c *Catalog) T(id string, data map[string]any) string {
	msg, err := c.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil || strings.TrimSpace(msg) == "" {
		return id
	}
	return msg
}

// Supported returns the languages with an embedded catalog.
func Supported() []string {
	files, _ := fs.ReadDir(localeFS, "locales")
	langs := make([]string, 0, len(files))
	for _, f := range files {
		if name, ok := strings.CutSuffix(f.Name(), ".yaml"); ok {
			langs = append(langs, name)
		}
	}
	sort.Strings(langs)
	return langs
}
