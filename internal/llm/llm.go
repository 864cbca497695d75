// Package llm extracts indicator values from document text with a chat
// model, caching answers so repeated pipeline runs never re-ask.
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/opencivica/comune-extractor/internal/catalog"
	"github.com/opencivica/comune-extractor/internal/metrics"
	"github.com/opencivica/comune-extractor/internal/paths"
)

// Prompt text is capped so one oversized document cannot blow the token
// budget; the cache key hashes a shorter prefix, enough to distinguish
// documents.
const (
	maxPromptChars   = 10000
	cacheKeyChars    = 1000
	DefaultModel     = "gpt-4o-mini"
	DefaultThreshold = 0.7
)

// Answer is the model's structured reply for one (indicator, year) ask.
type Answer struct {
	Found      bool    `json:"found"`
	Value      float64 `json:"value"`
	Year       int     `json:"year"`
	Unit       string  `json:"unit"`
	Confidence float64 `json:"confidence"`
}

// Completer produces one completion for a prompt. The OpenAI client
// satisfies it; tests substitute a canned implementation.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIClient adapts the openai-go chat API to Completer, requesting
// JSON-object output.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient builds a client for the given model. apiKey may be
// empty, in which case the SDK falls back to OPENAI_API_KEY.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIClient{client: openai.NewClient(opts...), model: model}
}

// Model reports the configured model name.
func (c *OpenAIClient) Model() string { return c.model }

// Complete implements Completer.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(c.model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Extractor asks the model for indicator values, answering from cache
// when the same (text, indicator, year, model) was asked before.
type Extractor struct {
	completer Completer
	model     string
	threshold float64
	catalog   *catalog.Catalog
	layout    paths.Layout
	logger    *zap.Logger
}

// NewExtractor builds an extractor. threshold <= 0 falls back to the
// default confidence gate.
func NewExtractor(completer Completer, model string, threshold float64, cat *catalog.Catalog, layout paths.Layout, logger *zap.Logger) *Extractor {
	if model == "" {
		model = DefaultModel
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Extractor{
		completer: completer,
		model:     model,
		threshold: threshold,
		catalog:   cat,
		layout:    layout,
		logger:    logger,
	}
}

// Extract asks for the indicator value in text. The boolean reports
// whether the answer passed the confidence and year gates; a gated-out
// answer is still cached so the model is never re-asked.
func (e *Extractor) Extract(ctx context.Context, text, indicator string, year int) (Answer, bool, error) {
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}
	key := CacheKey(text, indicator, year, e.model)

	if ans, ok := e.cached(ctx, key); ok {
		metrics.ValueCacheHits.Inc()
		return ans, e.accept(ans, year), nil
	}

	raw, err := e.completer.Complete(ctx, buildPrompt(text, indicator, year))
	if err != nil {
		return Answer{}, false, err
	}
	var ans Answer
	if err := json.Unmarshal([]byte(extractJSON(raw)), &ans); err != nil {
		return Answer{}, false, fmt.Errorf("parse model answer: %w", err)
	}

	if err := e.store(ctx, key, year, ans); err != nil {
		e.logger.Warn("cache llm answer", zap.Error(err))
	}
	return ans, e.accept(ans, year), nil
}

// accept gates an answer: the model must claim a find, clear the
// confidence threshold, and name the requested year (or no year at all).
func (e *Extractor) accept(ans Answer, year int) bool {
	if !ans.Found || ans.Confidence < e.threshold {
		return false
	}
	if year > 0 && ans.Year != 0 && ans.Year != year {
		return false
	}
	return true
}

// cached answers from the on-disk result the catalog points at. A stale
// pointer (file gone or unreadable) is a miss, never an error.
func (e *Extractor) cached(ctx context.Context, key string) (Answer, bool) {
	rec, err := e.catalog.ValueCacheGet(ctx, key)
	if err != nil {
		return Answer{}, false
	}
	data, err := os.ReadFile(rec.ResultPath)
	if err != nil {
		return Answer{}, false
	}
	var ans Answer
	if err := json.Unmarshal(data, &ans); err != nil {
		return Answer{}, false
	}
	return ans, true
}

func (e *Extractor) store(ctx context.Context, key string, year int, ans Answer) error {
	payload, err := json.Marshal(ans)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}

	dir := e.layout.ValueCacheDir(year)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create value cache dir: %w", err)
	}
	resultPath := filepath.Join(dir, key+".json")
	if err := os.WriteFile(resultPath, payload, 0o600); err != nil {
		return fmt.Errorf("write value cache file: %w", err)
	}

	return e.catalog.ValueCachePut(ctx, key, resultPath, e.model)
}

// CacheKey derives the cache key from a text prefix plus the question
// parameters. Hashing only a prefix keeps keying cheap while still
// separating distinct documents.
func CacheKey(text, indicator string, year int, model string) string {
	prefix := text
	if len(prefix) > cacheKeyChars {
		prefix = prefix[:cacheKeyChars]
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s", prefix, indicator, year, model)))
	return hex.EncodeToString(sum[:])
}

func buildPrompt(text, indicator string, year int) string {
	var b strings.Builder
	b.WriteString("Sei un assistente che estrae dati numerici da documenti comunali italiani.\n")
	fmt.Fprintf(&b, "Cerca il valore dell'indicatore %q", indicator)
	if year > 0 {
		fmt.Fprintf(&b, " per l'anno %d", year)
	}
	b.WriteString(" nel testo seguente.\n")
	b.WriteString("Rispondi SOLO con un oggetto JSON con i campi: ")
	b.WriteString(`"found" (bool), "value" (numero), "year" (intero, 0 se non indicato), "unit" (stringa), "confidence" (0-1).` + "\n")
	b.WriteString("Se il valore non è presente, rispondi con found=false.\n\n")
	b.WriteString("TESTO:\n")
	b.WriteString(text)
	return b.String()
}

// extractJSON tolerates models that wrap the object in a code fence.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}
