package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/ragdemo/internal/models"
	"github.com/xhad/ragdemo/pkg/logging"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrShapeMismatch is matched by every *ShapeMismatchError.
var ErrShapeMismatch = errors.New("input shape mismatch")

// ShapeMismatchError reports that a load produced an unexpected number of documents.
type ShapeMismatchError struct {
	URL  string
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("input shape mismatch: expected %d document(s) from %s, got %d", e.Want, e.URL, e.Got)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// ExpectCount fails fast unless docs has exactly want entries.
func ExpectCount(url string, docs []models.Document, want int) error {
	if len(docs) != want {
		return &ShapeMismatchError{URL: url, Want: want, Got: len(docs)}
	}
	return nil
}

type LoaderConfig struct {
	Selector  string
	Merge     bool    // concatenate all matches into one document per page
	RateLimit float64 // requests per second
	Timeout   time.Duration
	UserAgent string
	Logger    *zap.Logger
}

type Loader struct {
	config  LoaderConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewWithConfig(config LoaderConfig) *Loader {
	if config.Selector == "" {
		config.Selector = "p"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.UserAgent == "" {
		config.UserAgent = "ragdemo/1.0"
	}
	log := logging.OrNop(config.Logger)

	return &Loader{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		log:     log,
	}
}

// New returns a loader that merges every element matching selector into one document.
func New(selector string) *Loader {
	return NewWithConfig(LoaderConfig{Selector: selector, Merge: true})
}

// Load fetches url and extracts the text of the elements matching the selector.
func (l *Loader) Load(ctx context.Context, url string) ([]models.Document, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", l.config.UserAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, err)
	}

	docs := l.extract(doc, url)
	l.log.Debug("page loaded",
		zap.String("url", url),
		zap.String("selector", l.config.Selector),
		zap.Int("documents", len(docs)),
	)
	return docs, nil
}

func (l *Loader) extract(doc *goquery.Document, url string) []models.Document {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	meta := func() map[string]any {
		return map[string]any{
			models.MetaSource:   url,
			models.MetaTitle:    title,
			models.MetaSelector: l.config.Selector,
		}
	}

	matches := doc.Find(l.config.Selector)
	if matches.Length() == 0 {
		return nil
	}

	if l.config.Merge {
		return []models.Document{{PageContent: matches.Text(), Metadata: meta()}}
	}

	var docs []models.Document
	topLevel(matches).Each(func(_ int, s *goquery.Selection) {
		docs = append(docs, models.Document{PageContent: s.Text(), Metadata: meta()})
	})
	return docs
}

// topLevel drops every match that is nested inside another match.
func topLevel(matches *goquery.Selection) *goquery.Selection {
	return matches.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Parents().FilterSelection(matches).Length() == 0
	})
}
