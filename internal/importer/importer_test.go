package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingRepo struct {
	created  []models.KnowledgeEntry
	failOn   string
	attempts map[string]int
}

func (r *recordingRepo) Create(ctx context.Context, entry *models.KnowledgeEntry) error {
	if r.attempts == nil {
		r.attempts = make(map[string]int)
	}
	r.attempts[entry.Title]++
	if r.failOn != "" && entry.Title == r.failOn {
		return errors.New("duplicate key")
	}
	r.created = append(r.created, *entry)
	return nil
}

func (r *recordingRepo) ListByProject(ctx context.Context, projectID string) ([]models.KnowledgeEntry, error) {
	return r.created, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestCleanContent(t *testing.T) {
	cp := NewContentProcessor()
	assert.Equal(t, "a b\n\n\nc", cp.CleanContent("  a   b\r\n\n\n\n\n\tc  "))
	assert.Equal(t, "", cp.CleanContent(" \n \n"))
}

func TestSplitIntoChunks(t *testing.T) {
	cp := NewContentProcessor()

	assert.Nil(t, cp.SplitIntoChunks("   ", 10))
	assert.Equal(t, []string{"short"}, cp.SplitIntoChunks("short", 10))
	assert.Equal(t, []string{"p1 aaaa", "p2 bbbb"}, cp.SplitIntoChunks("p1 aaaa\n\np2 bbbb", 10))
	assert.Equal(t,
		[]string{"One two", "Three four", "Five six."},
		cp.SplitIntoChunks("One two. Three four. Five six.", 12),
	)
}

func TestExtractTagsAndCategory(t *testing.T) {
	cp := NewContentProcessor()

	assert.Equal(t, []string{"deployment"}, cp.ExtractTags("Build the docker image"))
	assert.Equal(t, "troubleshooting", cp.InferCategory("Troubleshooting login"))
	assert.Equal(t, "installation", cp.InferCategory("How to install"))
	assert.Equal(t, "configuration", cp.InferCategory("Config reference"))
	assert.Equal(t, "general", cp.InferCategory("Release notes"))
}

func TestNewImporter_Validation(t *testing.T) {
	_, err := NewImporter(&recordingRepo{}, Options{}, quietLogger())
	assert.Error(t, err)

	_, err = NewImporter(nil, Options{ProjectID: "p1"}, quietLogger())
	assert.Error(t, err)

	im, err := NewImporter(nil, Options{ProjectID: "p1", DryRun: true}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxChunkSize, im.opts.MaxChunkSize)
	assert.Equal(t, DefaultRetryConfig(), im.opts.Retry)
}

func TestBuildEntries(t *testing.T) {
	im, err := NewImporter(&recordingRepo{}, Options{ProjectID: "p1", Category: "documentation"}, quietLogger())
	require.NoError(t, err)

	entries, err := im.BuildEntries(Page{
		URL:   "https://docs.example.com/auth",
		Title: "Auth Guide",
		HTML:  `<h1>Auth</h1><p>Login with <a href="https://example.com">JWT</a> tokens.</p>`,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "p1", entry.ProjectID)
	assert.Equal(t, "Auth Guide", entry.Title)
	assert.Equal(t, "documentation", entry.Category)
	assert.Equal(t, "https://docs.example.com/auth", entry.SourceURL)
	assert.Contains(t, entry.Content, "Login with JWT tokens.")
	assert.NotContains(t, entry.Content, "https://example.com")
	assert.Contains(t, []string(entry.Tags), "authentication")
}

func TestBuildEntries_SplitsLongPages(t *testing.T) {
	im, err := NewImporter(&recordingRepo{}, Options{ProjectID: "p1", MaxChunkSize: 30}, quietLogger())
	require.NoError(t, err)

	entries, err := im.BuildEntries(Page{
		URL:  "https://docs.example.com/setup",
		HTML: "<p>First paragraph text here.</p><p>Second paragraph text here.</p>",
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://docs.example.com/setup (part 1/2)", entries[0].Title)
	assert.Equal(t, "https://docs.example.com/setup (part 2/2)", entries[1].Title)
}

func TestBuildEntries_EmptyPage(t *testing.T) {
	im, err := NewImporter(&recordingRepo{}, Options{ProjectID: "p1"}, quietLogger())
	require.NoError(t, err)

	_, err = im.BuildEntries(Page{URL: "https://docs.example.com/empty", HTML: "<div>   </div>"})
	assert.Error(t, err)
}

func TestImportPages(t *testing.T) {
	repo := &recordingRepo{failOn: "Broken"}
	im, err := NewImporter(repo, Options{ProjectID: "p1", Category: "documentation", Retry: fastRetry}, quietLogger())
	require.NoError(t, err)

	result, err := im.ImportPages(context.Background(), []Page{
		{URL: "https://docs.example.com/a", Title: "Deploying", HTML: "<p>Deploy with docker.</p>"},
		{URL: "https://docs.example.com/b", Title: "Broken", HTML: "<p>Never stored.</p>"},
		{URL: "https://docs.example.com/c", Title: "Empty", HTML: ""},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 1, result.Entries)
	assert.Len(t, result.Errors, 2)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "Deploying", repo.created[0].Title)
	assert.Equal(t, 3, repo.attempts["Broken"], "write retried before giving up")
}

func TestImportPages_DryRunWritesNothing(t *testing.T) {
	im, err := NewImporter(nil, Options{ProjectID: "p1", DryRun: true}, quietLogger())
	require.NoError(t, err)

	result, err := im.ImportPages(context.Background(), []Page{
		{URL: "https://docs.example.com/a", Title: "A", HTML: "<p>Content</p>"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Entries)
}

func TestImportPages_StopsOnCancel(t *testing.T) {
	repo := &recordingRepo{}
	im, err := NewImporter(repo, Options{ProjectID: "p1"}, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = im.ImportPages(ctx, []Page{{URL: "u", Title: "A", HTML: "<p>x</p>"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, repo.created)
}

func TestImport_CrawlsServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Release process</title><script>var x = 1;</script></head>
<body><nav>menu</nav><p>Tag the release and deploy to production.</p></body></html>`)
	}))
	defer srv.Close()

	repo := &recordingRepo{}
	im, err := NewImporter(repo, Options{ProjectID: "p1", Category: "documentation"}, quietLogger())
	require.NoError(t, err)

	result, err := im.Import(context.Background(), []string{srv.URL + "/release", srv.URL + "/missing"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Entries)
	assert.Len(t, result.Errors, 1)
	require.Len(t, repo.created, 1)
	entry := repo.created[0]
	assert.Equal(t, "Release process", entry.Title)
	assert.Contains(t, entry.Content, "Tag the release and deploy to production.")
	assert.NotContains(t, entry.Content, "var x")
	assert.NotContains(t, entry.Content, "menu")
	assert.Contains(t, []string(entry.Tags), "deployment")
}

func TestImport_CancelledBeforeCrawl(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "<html><body><p>Never fetched.</p></body></html>")
	}))
	defer srv.Close()

	repo := &recordingRepo{}
	im, err := NewImporter(repo, Options{ProjectID: "p1"}, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = im.Import(ctx, []string{srv.URL + "/a", srv.URL + "/b"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, hits.Load())
	assert.Empty(t, repo.created)
}

func TestContextTransport_StopsAfterCancel(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	transport := contextTransport{ctx: ctx, next: http.DefaultTransport}

	req := httptest.NewRequest(http.MethodGet, srv.URL, nil)
	req.RequestURI = ""
	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), hits.Load())

	cancel()
	_, err = transport.RoundTrip(req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), hits.Load())
}

// flakyRepo commits the first write but reports a timeout, like a dropped reply.
type flakyRepo struct {
	recordingRepo
	ids []string
}

func (r *flakyRepo) Create(ctx context.Context, entry *models.KnowledgeEntry) error {
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("entry-%d", len(r.ids)+1)
	}
	r.ids = append(r.ids, entry.ID)
	switch len(r.ids) {
	case 1:
		r.created = append(r.created, *entry)
		return errors.New("i/o timeout")
	default:
		return gorm.ErrDuplicatedKey
	}
}

func TestImportPages_RetryAfterCommittedWrite(t *testing.T) {
	repo := &flakyRepo{}
	im, err := NewImporter(repo, Options{ProjectID: "p1", Retry: fastRetry}, quietLogger())
	require.NoError(t, err)

	result, err := im.ImportPages(context.Background(), []Page{
		{URL: "https://docs.example.com/a", Title: "Deploying", HTML: "<p>Deploy with docker.</p>"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Entries)
	assert.Empty(t, result.Errors)
	assert.Len(t, repo.created, 1)
	assert.Equal(t, []string{"entry-1", "entry-1"}, repo.ids, "retry reuses the entry id")
}

func TestImportPages_DuplicateOnFirstAttemptFails(t *testing.T) {
	repo := &dupRepo{}
	im, err := NewImporter(repo, Options{ProjectID: "p1", Retry: fastRetry}, quietLogger())
	require.NoError(t, err)

	result, err := im.ImportPages(context.Background(), []Page{
		{URL: "https://docs.example.com/a", Title: "Deploying", HTML: "<p>Deploy with docker.</p>"},
	})
	require.NoError(t, err)

	assert.Zero(t, result.Entries)
	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], gorm.ErrDuplicatedKey)
	assert.Equal(t, 1, repo.calls, "a conflict is not retried")
}

type dupRepo struct {
	recordingRepo
	calls int
}

func (r *dupRepo) Create(ctx context.Context, entry *models.KnowledgeEntry) error {
	r.calls++
	return gorm.ErrDuplicatedKey
}
