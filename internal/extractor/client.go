package extractor

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/andybalholm/brotli"
)

// decompressingTransport negotiates gzip, deflate and brotli and
// decompresses the response transparently.
type decompressingTransport struct {
	base http.RoundTripper
}

func newDecompressingTransport(base http.RoundTripper) http.RoundTripper {
	return &decompressingTransport{base: base}
}

func (t *decompressingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		resp.Body = &decodedBody{reader: gz, underlying: resp.Body}
	case "deflate":
		resp.Body = &decodedBody{reader: flate.NewReader(resp.Body), underlying: resp.Body}
	case "br":
		resp.Body = &decodedBody{reader: io.NopCloser(brotli.NewReader(resp.Body)), underlying: resp.Body}
	default:
		return resp, nil
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	return resp, nil
}

type decodedBody struct {
	reader     io.ReadCloser
	underlying io.ReadCloser
}

func (b *decodedBody) Read(p []byte) (int, error) { return b.reader.Read(p) }

func (b *decodedBody) Close() error {
	b.reader.Close()
	return b.underlying.Close()
}

// Do sends the request, retrying connect timeouts. Other failures are
// returned as-is; non-2xx statuses become Failure errors with the body
// drained and closed.
func (s *State) Do(req *http.Request, attempts int) (*http.Response, error) {
	var lastErr error

	for i := 0; i < attempts; i++ {
		resp, err := s.Client.Do(req.Clone(req.Context()))
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}

	return nil, lastErr
}

// Fetch is Do plus the success-status check.
func (s *State) Fetch(req *http.Request, attempts int) (*http.Response, error) {
	resp, err := s.Do(req, attempts)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		DrainAndClose(resp)
		return nil, Failure(resp.StatusCode)
	}
	return resp, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// DrainAndClose consumes what is left of the body so the connection can
// be reused.
func DrainAndClose(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

// ReadBody reads an HTML response up to max bytes, stopping early once
// the closing body tag has been seen. The result is valid UTF-8; bad
// sequences are replaced.
func ReadBody(resp *http.Response, max int64) (string, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 16*1024)

	for {
		n, err := resp.Body.Read(chunk)
		if rem := max - int64(buf.Len()); int64(n) >= rem {
			buf.Write(chunk[:rem])
			break
		}
		buf.Write(chunk[:n])

		// pages regularly exceed the read budget; everything that
		// matters is before </body>
		if bytes.Contains(buf.Bytes(), []byte("</body")) {
			break
		}

		if err != nil {
			if err == io.EOF {
				break
			}
			return "", err
		}
	}

	return string(bytes.ToValidUTF8(buf.Bytes(), []byte("�"))), nil
}

// ReadBytes reads up to max bytes of the response body. A truncated
// read is not an error.
func ReadBytes(resp *http.Response, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		data = data[:max]
	}
	return data, nil
}
