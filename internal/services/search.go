package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/developia-II/slang-translator-backend/internal/config"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// Searcher returns short text snippets about a query, at most max of them.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]string, error)
}

const (
	googleMaxResults     = 10
	defaultSearchTimeout = 5 * time.Second
)

// GoogleSearcher queries the Programmable Search (Custom Search JSON) API.
type GoogleSearcher struct {
	svc     *customsearch.Service
	cx      string
	timeout time.Duration
}

func NewGoogleSearcher(ctx context.Context, cfg config.SearchConfig) (*GoogleSearcher, error) {
	if cfg.APIKey == "" || cfg.CX == "" {
		return nil, errors.New("GOOGLE_SEARCH_API_KEY and GOOGLE_SEARCH_CX are required")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("custom search client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSearchTimeout
	}
	return &GoogleSearcher{svc: svc, cx: cfg.CX, timeout: timeout}, nil
}

func (g *GoogleSearcher) Search(ctx context.Context, query string, max int) ([]string, error) {
	if max <= 0 {
		return nil, nil
	}
	if max > googleMaxResults {
		max = googleMaxResults
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := g.svc.Cse.List().Cx(g.cx).Q(query).Num(int64(max)).Context(ctx).Do()
	if err != nil {
		return nil, transient(fmt.Errorf("google search: %w", err))
	}

	snippets := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		text := strings.TrimSpace(strings.Join(strings.Fields(item.Snippet), " "))
		if text == "" {
			continue
		}
		if item.Title != "" {
			text = item.Title + ": " + text
		}
		snippets = append(snippets, text)
		if len(snippets) == max {
			break
		}
	}
	return snippets, nil
}

// CachedSearcher throttles outbound searches and remembers results, so repeated
// submissions of popular terms cost one query per TTL.
type CachedSearcher struct {
	next    Searcher
	cache   *gocache.Cache
	limiter *rate.Limiter
}

func NewCachedSearcher(next Searcher, ttl time.Duration, rps float64) *CachedSearcher {
	if rps <= 0 {
		rps = 1
	}
	return &CachedSearcher{
		next:    next,
		cache:   gocache.New(ttl, 2*ttl),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *CachedSearcher) Search(ctx context.Context, query string, max int) ([]string, error) {
	key := fmt.Sprintf("%d|%s", max, strings.ToLower(query))
	if v, ok := c.cache.Get(key); ok {
		return append([]string(nil), v.([]string)...), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search throttled: %w", err)
	}
	snippets, err := c.next.Search(ctx, query, max)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, append([]string(nil), snippets...))
	return snippets, nil
}

// NoopSearcher is used when no search backend is configured; validation then relies
// on the model alone.
type NoopSearcher struct{}

func (NoopSearcher) Search(context.Context, string, int) ([]string, error) {
	return nil, nil
}

// NewSearcher wires the configured backend behind the cache and throttle.
func NewSearcher(ctx context.Context, cfg config.SearchConfig) Searcher {
	g, err := NewGoogleSearcher(ctx, cfg)
	if err != nil {
		log.Printf("search: disabled: %v", err)
		return NoopSearcher{}
	}
	return NewCachedSearcher(g, cfg.CacheTTL, cfg.RPS)
}
