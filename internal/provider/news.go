package provider

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trendcast/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	newsName = "news"

	// NewsFeedURL is the default per-ticker headline feed. %s is the
	// escaped symbol.
	NewsFeedURL = "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US"
)

// NewsProvider reads ticker headlines from an RSS 2.0 feed.
type NewsProvider struct {
	client      *http.Client
	tracer      trace.Tracer
	urlTemplate string
	observer    UpstreamObserver
}

func NewNewsProvider(tracer trace.Tracer, urlTemplate string, observer UpstreamObserver) *NewsProvider {
	if strings.TrimSpace(urlTemplate) == "" {
		urlTemplate = NewsFeedURL
	}
	return &NewsProvider{
		client:      &http.Client{Timeout: 20 * time.Second},
		tracer:      tracer,
		urlTemplate: urlTemplate,
		observer:    observer,
	}
}

// FetchHeadlines returns at most maxItems headlines for symbol in feed
// order. Items without a title are skipped.
func (p *NewsProvider) FetchHeadlines(ctx context.Context, symbol string, maxItems int) ([]domain.Headline, error) {
	ctx, span := p.tracer.Start(ctx, "news.fetch-headlines")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	if maxItems <= 0 {
		maxItems = 10
	}
	feedURL := p.feedURL(symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		p.observe("transport_error")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.observe("transport_error")
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		p.observe("rejected")
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	p.observe("ok")

	var rss struct {
		Channel struct {
			Items []struct {
				Title       string `xml:"title"`
				Link        string `xml:"link"`
				Description string `xml:"description"`
				PubDate     string `xml:"pubDate"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	if err := xml.Unmarshal(body, &rss); err != nil {
		return nil, fmt.Errorf("decode rss payload: %w", err)
	}

	out := make([]domain.Headline, 0, min(maxItems, len(rss.Channel.Items)))
	for _, row := range rss.Channel.Items {
		if len(out) >= maxItems {
			break
		}
		title := sanitizeText(row.Title, 300)
		if title == "" {
			continue
		}
		out = append(out, domain.Headline{
			Symbol:      symbol,
			Title:       title,
			URL:         sanitizeText(row.Link, 500),
			Summary:     sanitizeText(htmlStrip(row.Description), 420),
			PublishedAt: parseRSSDate(row.PubDate),
		})
	}
	span.SetAttributes(attribute.Int("headlines", len(out)))
	return out, nil
}

func (p *NewsProvider) feedURL(symbol string) string {
	if strings.Contains(p.urlTemplate, "%s") {
		return fmt.Sprintf(p.urlTemplate, url.QueryEscape(symbol))
	}
	return p.urlTemplate
}

func (p *NewsProvider) observe(outcome string) {
	if p.observer != nil {
		p.observer.UpstreamRequest(newsName, outcome)
	}
}

func parseRSSDate(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func htmlStrip(in string) string {
	if strings.TrimSpace(in) == "" {
		return ""
	}
	var b strings.Builder
	inside := false
	for _, r := range in {
		switch r {
		case '<':
			inside = true
			continue
		case '>':
			inside = false
			continue
		}
		if !inside {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// sanitizeText collapses whitespace and truncates to maxLen bytes.
func sanitizeText(in string, maxLen int) string {
	in = strings.Join(strings.Fields(in), " ")
	if maxLen > 0 && len(in) > maxLen {
		in = in[:maxLen]
	}
	return in
}
