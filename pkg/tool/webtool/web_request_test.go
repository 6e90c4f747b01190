package webtool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Acme opens AI lab</title></head>
<body>
<nav>Home | News | Contact</nav>
<article>
<h1>Acme opens AI lab</h1>
<p>Acme Industries announced on Monday that it has opened a dedicated artificial intelligence lab in Pangyo,
staffed by forty engineers who will work on predictive maintenance for its component factories.</p>
<p>The company said the lab is part of a three-year digital transformation plan that also includes
migrating its ERP system to the cloud and rolling out computer vision inspection on every production line.</p>
<p>Analysts expect the investment to lift operating margins by the end of next year as defect rates fall.</p>
</article>
<footer>Copyright</footer>
</body></html>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	})
	mux.HandleFunc("/notes.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("  plain notes  \n"))
	})
	mux.HandleFunc("/long", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("a", 50)))
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	srv := newServer(t)
	f := New(Config{})
	ctx := context.Background()

	t.Run("html is reduced to readable text", func(t *testing.T) {
		page, err := f.Fetch(ctx, srv.URL+"/article")
		require.NoError(t, err)
		require.NotNil(t, page)
		assert.Equal(t, "Acme opens AI lab", page.Title)
		assert.Contains(t, page.Text, "predictive maintenance")
		assert.False(t, page.Truncated)
	})

	t.Run("plain text passes through trimmed", func(t *testing.T) {
		page, err := f.Fetch(ctx, srv.URL+"/notes.txt")
		require.NoError(t, err)
		require.NotNil(t, page)
		assert.Equal(t, "plain notes", page.Text)
	})

	t.Run("error status yields no page", func(t *testing.T) {
		page, err := f.Fetch(ctx, srv.URL+"/missing")
		require.NoError(t, err)
		assert.Nil(t, page)
	})

	t.Run("unsupported type yields no page", func(t *testing.T) {
		page, err := f.Fetch(ctx, srv.URL+"/logo.png")
		require.NoError(t, err)
		assert.Nil(t, page)
	})

	t.Run("invalid scheme", func(t *testing.T) {
		_, err := f.Fetch(ctx, "ftp://example.com/file")
		assert.Error(t, err)
	})
}

func TestFetch_TruncatesLongText(t *testing.T) {
	srv := newServer(t)
	f := New(Config{MaxTextLength: 10})

	page, err := f.Fetch(context.Background(), srv.URL+"/long")
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.True(t, page.Truncated)
	assert.True(t, strings.HasPrefix(page.Text, strings.Repeat("a", 10)+truncatedSuffix))
}

func TestFetch_DomainRules(t *testing.T) {
	f := New(Config{DeniedDomains: []string{"*.blocked.example"}})
	_, err := f.Fetch(context.Background(), "https://news.blocked.example/a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "domain not allowed")
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		contentType string
		path        string
		want        docKind
	}{
		{"text/html; charset=utf-8", "/", kindHTML},
		{"text/plain", "/a", kindText},
		{"application/pdf", "/report", kindPDF},
		{"application/octet-stream", "/ir/2024.PDF", kindPDF},
		{"", "/files/deck.docx", kindDOCX},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "/x", kindXLSX},
		{"image/png", "/logo.png", kindUnsupported},
		{"application/octet-stream", "/blob", kindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.contentType+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, detectKind(tt.contentType, tt.path))
		})
	}
}

func TestMatchesDomain(t *testing.T) {
	assert.True(t, matchesDomain("example.com:443", "example.com"))
	assert.True(t, matchesDomain("a.example.com", "*.example.com"))
	assert.False(t, matchesDomain("example.org", "*.example.com"))
}

func TestStripXMLTags(t *testing.T) {
	in := `<w:body><w:p><w:r><w:t>First</w:t></w:r></w:p><w:p><w:r><w:t>Second</w:t></w:r></w:p></w:body>`
	assert.Equal(t, "First\nSecond", stripXMLTags(in))
}
