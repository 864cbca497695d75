package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opencivica/comune-extractor/internal/catalog"
	"github.com/opencivica/comune-extractor/internal/paths"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestExtractor(t *testing.T, completer Completer) *Extractor {
	t.Helper()
	layout := paths.NewLayout(t.TempDir(), "testcomune")
	cat, err := catalog.Open(layout.CatalogPath())
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return NewExtractor(completer, "test-model", 0.7, cat, layout, zap.NewNop())
}

func TestExtractParsesAnswer(t *testing.T) {
	fake := &fakeCompleter{reply: `{"found":true,"value":1234.56,"year":2021,"unit":"euro","confidence":0.9}`}
	e := newTestExtractor(t, fake)

	ans, ok, err := e.Extract(context.Background(), "testo del bilancio", "spesa corrente", 2021)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 1234.56, ans.Value, 1e-9)
	require.Equal(t, "euro", ans.Unit)
}

func TestExtractCachesAnswers(t *testing.T) {
	fake := &fakeCompleter{reply: `{"found":true,"value":42,"year":2021,"confidence":0.9}`}
	e := newTestExtractor(t, fake)

	_, ok, err := e.Extract(context.Background(), "stesso testo", "spesa", 2021)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = e.Extract(context.Background(), "stesso testo", "spesa", 2021)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, fake.calls, "second ask must come from cache")
}

func TestExtractCacheKeySeparatesQuestions(t *testing.T) {
	fake := &fakeCompleter{reply: `{"found":true,"value":42,"year":2021,"confidence":0.9}`}
	e := newTestExtractor(t, fake)

	_, _, err := e.Extract(context.Background(), "stesso testo", "spesa", 2021)
	require.NoError(t, err)
	_, _, err = e.Extract(context.Background(), "stesso testo", "spesa", 2020)
	require.NoError(t, err)
	require.Equal(t, 2, fake.calls)
}

func TestExtractRejectsLowConfidence(t *testing.T) {
	fake := &fakeCompleter{reply: `{"found":true,"value":42,"year":2021,"confidence":0.4}`}
	e := newTestExtractor(t, fake)

	_, ok, err := e.Extract(context.Background(), "testo", "spesa", 2021)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExtractRejectsWrongYear(t *testing.T) {
	fake := &fakeCompleter{reply: `{"found":true,"value":42,"year":2019,"confidence":0.95}`}
	e := newTestExtractor(t, fake)

	_, ok, err := e.Extract(context.Background(), "testo", "spesa", 2021)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExtractAcceptsAnswerWithoutYearClaim(t *testing.T) {
	fake := &fakeCompleter{reply: `{"found":true,"value":42,"year":0,"confidence":0.95}`}
	e := newTestExtractor(t, fake)

	_, ok, err := e.Extract(context.Background(), "testo", "spesa", 2021)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestExtractRejectsNotFoundAnswer(t *testing.T) {
	fake := &fakeCompleter{reply: `{"found":false,"confidence":0.99}`}
	e := newTestExtractor(t, fake)

	_, ok, err := e.Extract(context.Background(), "testo", "spesa", 2021)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestExtractToleratesCodeFencedJSON(t *testing.T) {
	fake := &fakeCompleter{reply: "```json\n{\"found\":true,\"value\":7,\"year\":2021,\"confidence\":0.8}\n```"}
	e := newTestExtractor(t, fake)

	ans, ok, err := e.Extract(context.Background(), "testo", "spesa", 2021)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 7.0, ans.Value, 1e-9)
}

func TestExtractPropagatesCompleterError(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("rate limited")}
	e := newTestExtractor(t, fake)

	_, _, err := e.Extract(context.Background(), "testo", "spesa", 2021)
	require.Error(t, err)
}

func TestCacheKeyUsesTextPrefixOnly(t *testing.T) {
	long := make([]byte, cacheKeyChars*2)
	for i := range long {
		long[i] = 'a'
	}
	a := CacheKey(string(long), "spesa", 2021, "m")
	b := CacheKey(string(long)+"suffix", "spesa", 2021, "m")
	require.Equal(t, a, b)

	c := CacheKey(string(long), "spesa", 2021, "other-model")
	require.NotEqual(t, a, c)
}
