package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/iceymoss/go-feed/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEnricher struct {
	text  string
	err   error
	calls int
}

func (s *stubEnricher) GetFullContent(context.Context, string) (*pipeline.FullContent, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &pipeline.FullContent{Text: s.text}, nil
}

func TestEnricherChainFallsThrough(t *testing.T) {
	first := &stubEnricher{err: errors.New("404")}
	second := &stubEnricher{text: "  "}
	third := &stubEnricher{text: "page body"}
	never := &stubEnricher{text: "unused"}

	chain := EnricherChain{{"exa", first}, {"blank", second}, {"web", third}, {"never", never}}
	full, err := chain.GetFullContent(context.Background(), "https://a.com")
	require.NoError(t, err)
	assert.Equal(t, "page body", full.Text)
	assert.Equal(t, 0, never.calls)
}

func TestEnricherChainNotFound(t *testing.T) {
	chain := EnricherChain{{"exa", &stubEnricher{err: errors.New("down")}}}
	_, err := chain.GetFullContent(context.Background(), "https://a.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = EnricherChain{}.GetFullContent(context.Background(), "https://a.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

type stubDiscoverer struct {
	results []pipeline.SearchResult
	err     error
	queries []string
}

func (s *stubDiscoverer) Search(_ context.Context, query string, _ pipeline.SearchFilters) ([]pipeline.SearchResult, error) {
	s.queries = append(s.queries, query)
	return s.results, s.err
}

func TestMultiDiscovererMergesAndDedupes(t *testing.T) {
	a := &stubDiscoverer{results: []pipeline.SearchResult{{URL: "u1"}, {URL: "u2"}}}
	b := &stubDiscoverer{results: []pipeline.SearchResult{{URL: "u2"}, {URL: "u3"}}}
	c := &stubDiscoverer{err: errors.New("down")}

	m := NewMultiDiscoverer(
		NamedDiscoverer{Name: "a", Discoverer: a, Query: func(d pipeline.Dimension) string { return "A:" + d.Topic }},
		NamedDiscoverer{Name: "b", Discoverer: b},
		NamedDiscoverer{Name: "c", Discoverer: c},
	)
	res, err := m.SearchDimension(context.Background(), pipeline.Dimension{Topic: "ai", Category: "news"})
	require.NoError(t, err)

	urls := make([]string, 0, len(res))
	for _, r := range res {
		urls = append(urls, r.URL)
	}
	assert.Equal(t, []string{"u1", "u2", "u3"}, urls)
	assert.Equal(t, []string{"A:ai"}, a.queries)
	assert.Equal(t, []string{"ai news"}, b.queries)
}

func TestMultiDiscovererAllFailing(t *testing.T) {
	m := NewMultiDiscoverer(
		NamedDiscoverer{Name: "a", Discoverer: &stubDiscoverer{err: errors.New("x")}},
		NamedDiscoverer{Name: "b", Discoverer: &stubDiscoverer{err: errors.New("y")}},
	)
	_, err := m.Search(context.Background(), "q", pipeline.SearchFilters{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: x")
}
