package extractor

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bodyResponse(s string) *http.Response {
	return &http.Response{Body: io.NopCloser(strings.NewReader(s))}
}

func TestReadBodyCapsAtLimit(t *testing.T) {
	// no closing body tag, so only the byte budget can stop the read
	page := strings.Repeat("a", 100*1024)

	got, err := ReadBody(bodyResponse(page), 20_000)
	require.NoError(t, err)
	assert.Len(t, got, 20_000)
}

func TestReadBodyStopsAtClosingBodyTag(t *testing.T) {
	page := "<html><body>hello</body></html>" + strings.Repeat("x", 64*1024)

	got, err := ReadBody(bodyResponse(page), 1<<20)
	require.NoError(t, err)
	assert.Contains(t, got, "</body")
	assert.Less(t, len(got), 64*1024)
}

func TestReadBodyShortDocument(t *testing.T) {
	got, err := ReadBody(bodyResponse("<html>tiny</html>"), 20_000)
	require.NoError(t, err)
	assert.Equal(t, "<html>tiny</html>", got)
}
