package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/ragdemo/internal/models"
)

func pageServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

const recipePage = `
<html>
	<head><title>Carbonara</title></head>
	<body>
		<nav>Home</nav>
		<p>Carbonara needs eggs, cheese, pasta, and pepper.</p>
		<p>Toss off the heat for a creamy sauce.</p>
	</body>
</html>`

func TestLoadMerge(t *testing.T) {
	server := pageServer(t, map[string]string{"/recipe": recipePage})

	l := New("p")
	docs, err := l.Load(context.Background(), server.URL+"/recipe")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NoError(t, ExpectCount(server.URL, docs, 1))

	doc := docs[0]
	assert.Contains(t, doc.PageContent, "Carbonara needs eggs, cheese, pasta, and pepper.")
	assert.Contains(t, doc.PageContent, "creamy sauce")
	assert.NotContains(t, doc.PageContent, "Home")
	assert.Equal(t, server.URL+"/recipe", doc.Metadata[models.MetaSource])
	assert.Equal(t, "Carbonara", doc.Metadata[models.MetaTitle])
	assert.Equal(t, "p", doc.Metadata[models.MetaSelector])
}

func TestLoadShapeMismatch(t *testing.T) {
	server := pageServer(t, map[string]string{
		"/none": `<html><body><div>nothing here</div></body></html>`,
		"/two":  `<html><body><article>first</article><article>second</article></body></html>`,
	})

	tests := []struct {
		name  string
		path  string
		merge bool
		got   int
	}{
		{"zero matches merged", "/none", true, 0},
		{"zero matches split", "/none", false, 0},
		{"two top-level units", "/two", false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewWithConfig(LoaderConfig{Selector: "article", Merge: tt.merge, RateLimit: 100})
			docs, err := l.Load(context.Background(), server.URL+tt.path)
			require.NoError(t, err)
			assert.Len(t, docs, tt.got)

			err = ExpectCount(server.URL+tt.path, docs, 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrShapeMismatch))

			var mismatch *ShapeMismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, 1, mismatch.Want)
			assert.Equal(t, tt.got, mismatch.Got)
		})
	}
}

func TestLoadTopLevelOnly(t *testing.T) {
	server := pageServer(t, map[string]string{
		"/nested": `<html><body><section>outer <section>inner</section></section></body></html>`,
	})

	l := NewWithConfig(LoaderConfig{Selector: "section", RateLimit: 100})
	docs, err := l.Load(context.Background(), server.URL+"/nested")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].PageContent, "outer")
	assert.Contains(t, docs[0].PageContent, "inner")
}

func TestLoadHTTPError(t *testing.T) {
	server := pageServer(t, map[string]string{})

	_, err := New("p").Load(context.Background(), server.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 404")
}

func TestLoadCanceled(t *testing.T) {
	server := pageServer(t, map[string]string{"/recipe": recipePage})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New("p").Load(ctx, server.URL+"/recipe")
	assert.Error(t, err)
}
