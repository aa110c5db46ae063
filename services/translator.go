package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/tmc/langchaingo/prompts"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"google.golang.org/api/option"
	translate "google.golang.org/api/translate/v2"
)

// AutoLanguage asks the translator to detect the source language itself.
const AutoLanguage = "auto"

// LanguageDetector identifies the language of a piece of text and returns
// an ISO 639-1 code.
type LanguageDetector interface {
	Detect(text string) (string, error)
}

// TranslationProvider performs the actual translation. source is always a
// concrete language code when called through TranslationService.
type TranslationProvider interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// TranslationService wraps a provider with language detection, a local
// fallback for failed detection and the provider call policy.
type TranslationService struct {
	detector        LanguageDetector
	provider        TranslationProvider
	policy          *CallPolicy
	defaultLanguage string
}

func NewTranslationService(detector LanguageDetector, provider TranslationProvider, policy *CallPolicy, defaultLanguage string) *TranslationService {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &TranslationService{
		detector:        detector,
		provider:        provider,
		policy:          policy,
		defaultLanguage: NormalizeLanguage(defaultLanguage),
	}
}

// DetectLanguage returns the language of text. When detection fails the
// default language is returned and fellBack is true.
func (s *TranslationService) DetectLanguage(text string) (lang string, fellBack bool) {
	code, err := s.detector.Detect(text)
	if err == nil {
		if normalized := NormalizeLanguage(code); normalized != "" {
			return normalized, false
		}
		err = fmt.Errorf("%w: unrecognised code %q", ErrLanguageDetection, code)
	}
	log.Printf("TRANSLATOR: language detection failed, defaulting to %q: %v", s.defaultLanguage, err)
	return s.defaultLanguage, true
}

// Translate converts text from source (or AutoLanguage) into target. Blank
// text and same-language requests are returned without calling the provider.
func (s *TranslationService) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if source == "" || source == AutoLanguage {
		source, _ = s.DetectLanguage(text)
	}
	source, target = NormalizeLanguage(source), NormalizeLanguage(target)
	if target == "" {
		return "", newError(CodeInvalidRequest, "translate", "unknown target language", nil)
	}
	if source == target {
		return text, nil
	}

	var out string
	err := s.policy.Do(ctx, "translate", func(ctx context.Context) error {
		var err error
		out, err = s.provider.Translate(ctx, text, source, target)
		return err
	})
	if err != nil {
		return "", newError(CodeTranslationUnavailable, "translate", "translation provider failed", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", newError(CodeTranslationUnavailable, "translate", "translation provider returned empty text", nil)
	}
	return out, nil
}

// NormalizeLanguage maps any BCP 47 tag or ISO 639 code to its base
// language, e.g. "en-US" and "eng" both become "en". Unknown input yields "".
func NormalizeLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// languageName renders a code as an English language name for prompts.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// WhatlangDetector detects languages in process using trigram statistics.
type WhatlangDetector struct {
	// MinConfidence rejects detections below this confidence (0..1).
	MinConfidence float64
}

func (d WhatlangDetector) Detect(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty text", ErrLanguageDetection)
	}
	info := whatlanggo.Detect(text)
	if info.Confidence < d.MinConfidence {
		return "", fmt.Errorf("%w: confidence %.2f below %.2f", ErrLanguageDetection, info.Confidence, d.MinConfidence)
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return "", fmt.Errorf("%w: no ISO 639-1 code for %s", ErrLanguageDetection, info.Lang.String())
	}
	return code, nil
}

// GoogleTranslator calls the Google Cloud Translation v2 API.
type GoogleTranslator struct {
	svc *translate.Service
}

func NewGoogleTranslator(ctx context.Context, apiKey string) (*GoogleTranslator, error) {
	svc, err := translate.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create translation client: %w", err)
	}
	return &GoogleTranslator{svc: svc}, nil
}

func (g *GoogleTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	call := g.svc.Translations.List([]string{text}, target).Format("text").Context(ctx)
	if source != "" && source != AutoLanguage {
		call = call.Source(source)
	}
	resp, err := call.Do()
	if err != nil {
		return "", err
	}
	if len(resp.Translations) == 0 {
		return "", fmt.Errorf("google translate returned no translations")
	}
	return resp.Translations[0].TranslatedText, nil
}

var translationPrompt = prompts.NewPromptTemplate(
	`Translate the following text from {{.source}} into {{.target}}.
Reply with the translation only, without quotes, notes or explanations.
Keep names, numbers and formatting unchanged.

Text:
{{.text}}`,
	[]string{"source", "target", "text"},
)

// LLMTranslator translates through the configured generation model, so the
// service needs no credential beyond the LLM key.
type LLMTranslator struct {
	generator Generator
}

func NewLLMTranslator(generator Generator) *LLMTranslator {
	return &LLMTranslator{generator: generator}
}

func (l *LLMTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	prompt, err := translationPrompt.Format(map[string]any{
		"source": languageName(source),
		"target": languageName(target),
		"text":   text,
	})
	if err != nil {
		return "", fmt.Errorf("format translation prompt: %w", err)
	}
	out, err := l.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// PassthroughTranslator returns text unchanged.
type PassthroughTranslator struct{}

func (PassthroughTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}
