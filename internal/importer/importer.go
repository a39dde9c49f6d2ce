package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	DefaultMaxChunkSize = 4000
	userAgent           = "ctxinject-importer/1.0"
)

type Options struct {
	ProjectID    string
	Category     string
	DryRun       bool
	MaxChunkSize int
	Parallelism  int
	Delay        time.Duration
	Retry        RetryConfig
}

// Page is one crawled document.
type Page struct {
	URL   string
	Title string
	HTML  string
}

type Result struct {
	Pages   int
	Entries int
	Errors  []error
}

// Importer crawls documentation pages and stores them as knowledge entries.
type Importer struct {
	repo      models.KnowledgeRepository
	processor *ContentProcessor
	opts      Options
	logger    *logrus.Logger
}

func NewImporter(repo models.KnowledgeRepository, opts Options, logger *logrus.Logger) (*Importer, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}
	if !opts.DryRun && repo == nil {
		return nil, fmt.Errorf("knowledge repository is required unless dry-run is set")
	}
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 2
	}
	if opts.Retry == (RetryConfig{}) {
		opts.Retry = DefaultRetryConfig()
	}

	return &Importer{
		repo:      repo,
		processor: NewContentProcessor(),
		opts:      opts,
		logger:    logger,
	}, nil
}

// Crawl fetches every URL once. Fetch failures are returned per URL. Once ctx is
// done, requests that have not been sent yet are dropped.
func (im *Importer) Crawl(ctx context.Context, urls []string) ([]Page, []error) {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.Async(true),
	)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: im.opts.Parallelism,
		Delay:       im.opts.Delay,
	}); err != nil {
		return nil, []error{fmt.Errorf("invalid crawl limits: %w", err)}
	}
	c.SetRequestTimeout(30 * time.Second)
	c.WithTransport(contextTransport{ctx: ctx, next: http.DefaultTransport})

	var (
		mu    sync.Mutex
		pages []Page
		errs  []error
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		e.DOM.Find("script, style, nav, header, footer, noscript").Remove()
		body, err := e.DOM.Find("body").Html()
		if err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", e.Request.URL, err))
			mu.Unlock()
			return
		}

		title := strings.TrimSpace(e.ChildText("title"))
		if title == "" {
			title = strings.TrimSpace(e.ChildText("h1"))
		}

		mu.Lock()
		pages = append(pages, Page{URL: e.Request.URL.String(), Title: title, HTML: body})
		mu.Unlock()
	})

	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", r.Request.URL, err))
		mu.Unlock()
	})

	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		if err := c.Visit(u); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
			mu.Unlock()
		}
	}
	c.Wait()

	return pages, errs
}

// contextTransport ties every fetch to the crawl's context. Requests still waiting
// for a parallelism slot fail fast once it is done.
type contextTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req.WithContext(t.ctx))
}

// Import crawls the URLs and stores the resulting entries.
func (im *Importer) Import(ctx context.Context, urls []string) (*Result, error) {
	pages, crawlErrs := im.Crawl(ctx, urls)
	for _, err := range crawlErrs {
		im.logger.WithError(err).Warn("Failed to fetch page")
	}

	result, err := im.ImportPages(ctx, pages)
	if result != nil {
		result.Errors = append(crawlErrs, result.Errors...)
	}
	return result, err
}

// ImportPages converts already fetched pages. It stops early only when ctx ends.
func (im *Importer) ImportPages(ctx context.Context, pages []Page) (*Result, error) {
	result := &Result{}

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		im.logger.WithFields(logrus.Fields{
			"url":      page.URL,
			"progress": fmt.Sprintf("%d/%d", i+1, len(pages)),
		}).Info("Processing page")

		entries, err := im.BuildEntries(page)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", page.URL, err))
			continue
		}
		result.Pages++

		for _, entry := range entries {
			if im.opts.DryRun {
				im.logger.WithFields(logrus.Fields{
					"title":    entry.Title,
					"category": entry.Category,
					"tags":     []string(entry.Tags),
					"length":   len(entry.Content),
				}).Info("DRY RUN: Would create knowledge entry")
				result.Entries++
				continue
			}

			if err := im.createEntry(ctx, entry); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("%s: failed to create entry %q: %w", page.URL, entry.Title, err))
				continue
			}
			result.Entries++
		}
	}

	im.logger.WithFields(logrus.Fields{
		"pages":   result.Pages,
		"entries": result.Entries,
		"errors":  len(result.Errors),
	}).Info("Import completed")

	return result, nil
}

// createEntry retries transient write failures. The entry keeps its id across
// attempts, so a duplicate key on a retry means an earlier attempt committed,
// while one on the first attempt is a real conflict.
func (im *Importer) createEntry(ctx context.Context, entry *models.KnowledgeEntry) error {
	attempt := 0
	return retryOperation(ctx, im.opts.Retry, im.logger, func() error {
		attempt++
		err := im.repo.Create(ctx, entry)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		if attempt == 1 {
			return permanent(err)
		}
		im.logger.WithFields(logrus.Fields{
			"id":    entry.ID,
			"title": entry.Title,
		}).Debug("Knowledge entry already stored by an earlier attempt")
		return nil
	})
}

// BuildEntries splits a page into one knowledge entry per chunk.
func (im *Importer) BuildEntries(page Page) ([]*models.KnowledgeEntry, error) {
	text, err := im.processor.HTMLToText(page.HTML)
	if err != nil {
		return nil, err
	}
	chunks := im.processor.SplitIntoChunks(text, im.opts.MaxChunkSize)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no content extracted from page")
	}

	title := page.Title
	if title == "" {
		title = page.URL
	}

	entries := make([]*models.KnowledgeEntry, 0, len(chunks))
	for i, chunk := range chunks {
		entryTitle := title
		if len(chunks) > 1 {
			entryTitle = fmt.Sprintf("%s (part %d/%d)", title, i+1, len(chunks))
		}

		category := im.opts.Category
		if category == "" {
			category = im.processor.InferCategory(chunk)
		}

		entries = append(entries, &models.KnowledgeEntry{
			ProjectID: im.opts.ProjectID,
			Title:     entryTitle,
			Content:   chunk,
			Category:  category,
			Tags:      models.StringArray(im.processor.ExtractTags(chunk)),
			SourceURL: page.URL,
		})
	}
	return entries, nil
}
