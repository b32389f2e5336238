package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DCbrown/interview-ai-app/internal/apperr"
)

const posting = `<!doctype html>
<html><head><title>Careers</title><style>.x{color:red}</style></head>
<body>
  <script>var tracking = 1;</script>
  <h1>Senior   Go Engineer</h1>
  <p>Build
     distributed systems.</p>
  <noscript>enable js</noscript>
  <svg><text>logo</text></svg>
</body></html>`

func TestExtractText(t *testing.T) {
	text, err := ExtractText(strings.NewReader(posting))
	require.NoError(t, err)
	assert.Equal(t, "Senior Go Engineer Build distributed systems.", text)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/job":
			_, _ = w.Write([]byte(posting))
		case "/empty":
			_, _ = w.Write([]byte("<html><body><script>x()</script></body></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient()
	text, err := c.Fetch(context.Background(), srv.URL+"/job")
	require.NoError(t, err)
	assert.Contains(t, text, "Senior Go Engineer")

	_, err = c.Fetch(context.Background(), srv.URL+"/missing")
	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindScrape, kind)

	_, err = c.Fetch(context.Background(), srv.URL+"/empty")
	assert.True(t, errors.Is(err, ErrEmptyText))
}

func TestValidateURL(t *testing.T) {
	for _, bad := range []string{"", "   ", "ftp://example.com/x", "not a url", "https://"} {
		_, err := ValidateURL(bad)
		assert.ErrorIs(t, err, ErrInvalidURL, bad)
	}
	u, err := ValidateURL(" https://jobs.example.com/123 ")
	require.NoError(t, err)
	assert.Equal(t, "jobs.example.com", u.Host)
}
