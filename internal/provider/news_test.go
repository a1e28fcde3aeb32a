package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

const feedBody = `<?xml version="1.0"?><rss version="2.0"><channel><title>Yahoo Finance</title>
<item><title>Apple beats   estimates</title><link>https://news.example/aapl-1</link><description><![CDATA[<p>Record <b>services</b> revenue</p>]]></description><pubDate>Fri, 13 Feb 2026 10:00:00 +0000</pubDate></item>
<item><title> </title><link>https://news.example/empty</link></item>
<item><title>Second story</title><pubDate>not a date</pubDate></item>
<item><title>Third story</title></item>
</channel></rss>`

func newsResponder(t *testing.T, status int, body string, gotURL *string) *http.Client {
	t.Helper()
	return &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		*gotURL = req.URL.String()
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(bytes.NewBufferString(body)),
			Header:     make(http.Header),
		}, nil
	})}
}

func TestFetchHeadlines(t *testing.T) {
	var gotURL string
	obs := &countingObserver{}
	p := NewNewsProvider(trace.NewNoopTracerProvider().Tracer("test"), "", obs)
	p.client = newsResponder(t, http.StatusOK, feedBody, &gotURL)

	items, err := p.FetchHeadlines(context.Background(), "BRK-B", 2)
	require.NoError(t, err)
	assert.Equal(t, "https://feeds.finance.yahoo.com/rss/2.0/headline?s=BRK-B&region=US&lang=en-US", gotURL)
	require.Len(t, items, 2)

	assert.Equal(t, "BRK-B", items[0].Symbol)
	assert.Equal(t, "Apple beats estimates", items[0].Title)
	assert.Equal(t, "Record services revenue", items[0].Summary)
	assert.Equal(t, "https://news.example/aapl-1", items[0].URL)
	assert.Equal(t, time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC), items[0].PublishedAt)

	assert.Equal(t, "Second story", items[1].Title)
	assert.True(t, items[1].PublishedAt.IsZero())
	assert.Equal(t, []string{"news:ok"}, obs.outcomes)
}

func TestFetchHeadlinesFixedURL(t *testing.T) {
	var gotURL string
	p := NewNewsProvider(trace.NewNoopTracerProvider().Tracer("test"), "https://feeds.example/all.xml", nil)
	p.client = newsResponder(t, http.StatusOK, feedBody, &gotURL)

	items, err := p.FetchHeadlines(context.Background(), "AAPL", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://feeds.example/all.xml", gotURL)
	assert.Len(t, items, 3)
}

func TestFetchHeadlinesStatusError(t *testing.T) {
	var gotURL string
	obs := &countingObserver{}
	p := NewNewsProvider(trace.NewNoopTracerProvider().Tracer("test"), "", obs)
	p.client = newsResponder(t, http.StatusTooManyRequests, "slow down", &gotURL)

	_, err := p.FetchHeadlines(context.Background(), "AAPL", 5)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusTooManyRequests))
	assert.Equal(t, []string{"news:rejected"}, obs.outcomes)
}

func TestFetchHeadlinesBadXML(t *testing.T) {
	var gotURL string
	p := NewNewsProvider(trace.NewNoopTracerProvider().Tracer("test"), "", nil)
	p.client = newsResponder(t, http.StatusOK, "<rss><channel><item>", &gotURL)

	_, err := p.FetchHeadlines(context.Background(), "AAPL", 5)
	assert.ErrorContains(t, err, "decode rss payload")
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "a b c", sanitizeText("  a\n b\r\n   c ", 0))
	assert.Equal(t, "abc", sanitizeText("abcdef", 3))
	assert.Equal(t, "", sanitizeText("   ", 10))
	assert.Equal(t, "bold text", htmlStrip("<b>bold</b> text"))
}
