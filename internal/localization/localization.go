// Package localization serves every user-facing string of the bot from JSON catalogs,
// one file per language code.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
)

//go:embed locales/*.json
var embedded embed.FS

// FallbackLanguage is used when a key is missing in the requested language.
const FallbackLanguage = "en"

// Localizer maps language -> key -> text.
type Localizer struct {
	translations map[string]map[string]string
	defaultLang  string
	mu           sync.RWMutex
}

// NewDefault loads the catalogs compiled into the binary.
func NewDefault(defaultLang string) (*Localizer, error) {
	return NewLocalizer(embedded, "locales", defaultLang)
}

// NewLocalizer loads every <lang>.json under dir in fsys.
func NewLocalizer(fsys fs.FS, dir, defaultLang string) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
		defaultLang:  normalize(defaultLang),
	}
	if l.defaultLang == "" {
		l.defaultLang = FallbackLanguage
	}

	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")

		data, err := fs.ReadFile(fsys, path.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		l.translations[lang] = translations
	}

	return l, nil
}

// GetString returns the localized string for a given key and language.
// Unknown or empty languages use the default language, then English.
// If the key is not found anywhere, it returns the key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, candidate := range []string{normalize(lang), l.defaultLang, FallbackLanguage} {
		if langTranslations, ok := l.translations[candidate]; ok {
			if value, ok := langTranslations[key]; ok {
				return value
			}
		}
	}

	return key
}

// Format looks up key and applies fmt.Sprintf with args.
func (l *Localizer) Format(lang, key string, args ...any) string {
	if len(args) == 0 {
		return l.GetString(lang, key)
	}
	return fmt.Sprintf(l.GetString(lang, key), args...)
}

// Has reports whether a catalog exists for lang.
func (l *Localizer) Has(lang string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.translations[normalize(lang)]
	return ok
}

// normalize turns client tags like "en-US" into catalog names.
func normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
