package middleware

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Schlüssel im gin-Kontext
const (
	languageKey   = "language"
	translatorKey = "translator"
)

// Translator hält Bundle und Localizer für alle eingebetteten Sprachen
type Translator struct {
	bundle      *i18n.Bundle
	localizers  map[string]*i18n.Localizer
	defaultLang string
	matcher     language.Matcher
	tags        []language.Tag
}

// NewTranslator lädt die eingebetteten Übersetzungen
func NewTranslator(defaultLang string) (*Translator, error) {
	if defaultLang == "" {
		defaultLang = "en"
	}
	defTag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", defaultLang, err)
	}

	bundle := i18n.NewBundle(defTag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	t := &Translator{
		bundle:      bundle,
		localizers:  make(map[string]*i18n.Localizer),
		defaultLang: defaultLang,
	}

	files, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		mf, err := bundle.LoadMessageFileFS(localeFS, path.Join("locales", file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file.Name(), err)
		}
		lang := strings.TrimSuffix(file.Name(), ".json")
		t.localizers[lang] = i18n.NewLocalizer(bundle, lang, defaultLang)
		t.tags = append(t.tags, mf.Tag)
	}
	if _, ok := t.localizers[defaultLang]; !ok {
		return nil, fmt.Errorf("no translations for default language %q", defaultLang)
	}

	t.matcher = language.NewMatcher(t.tags)
	return t, nil
}

// Supports prüft, ob eine Sprache geladen ist
func (t *Translator) Supports(lang string) bool {
	_, ok := t.localizers[lang]
	return ok
}

// Translate übersetzt eine Nachricht. Unbekannte Schlüssel werden unverändert zurückgegeben.
func (t *Translator) Translate(lang, id string) string {
	loc, ok := t.localizers[lang]
	if !ok {
		loc = t.localizers[t.defaultLang]
	}
	msg, err := loc.Localize(&i18n.LocalizeConfig{MessageID: id})
	if err != nil || msg == "" {
		return id
	}
	return msg
}

// EmotionLabel übersetzt ein Emotions- oder Statuslabel
func (t *Translator) EmotionLabel(lang, label string) string {
	out := t.Translate(lang, "emotion."+label)
	if out == "emotion."+label {
		return label
	}
	return out
}

// match wählt die beste Sprache aus einem Accept-Language-Header
func (t *Translator) match(header string) string {
	if header == "" {
		return ""
	}
	prefs, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(prefs) == 0 {
		return ""
	}
	_, idx, conf := t.matcher.Match(prefs...)
	if conf == language.No {
		return ""
	}
	base, _ := t.tags[idx].Base()
	return base.String()
}

// I18n erstellt eine Middleware für die Internationalisierung. Reihenfolge der
// Sprachwahl: ?lang=, Session, Accept-Language, Standardsprache.
// Erfordert die sessions-Middleware.
func I18n(t *Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		lang := c.Query("lang")

		if lang != "" && t.Supports(lang) {
			session.Set(languageKey, lang)
			if err := session.Save(); err != nil {
				log.Debugf("Failed to save language preference: %v", err)
			}
		} else if stored, ok := session.Get(languageKey).(string); ok && t.Supports(stored) {
			lang = stored
		} else {
			lang = t.match(c.GetHeader("Accept-Language"))
		}

		if !t.Supports(lang) {
			lang = t.defaultLang
		}

		c.Set(languageKey, lang)
		c.Set(translatorKey, t)
		c.Next()
	}
}

// Language gibt die für die Anfrage gewählte Sprache zurück
func Language(c *gin.Context) string {
	return c.GetString(languageKey)
}

// T übersetzt eine Nachricht in der Sprache der Anfrage
func T(c *gin.Context, id string) string {
	t, ok := c.Get(translatorKey)
	if !ok {
		return id
	}
	return t.(*Translator).Translate(Language(c), id)
}

// EmotionLabel übersetzt ein Label in der Sprache der Anfrage
func EmotionLabel(c *gin.Context, label string) string {
	t, ok := c.Get(translatorKey)
	if !ok {
		return label
	}
	return t.(*Translator).EmotionLabel(Language(c), label)
}
