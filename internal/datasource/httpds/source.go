package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"csvingest/internal/datasource"
)

// Source is a datasource.Source backed by an HTTP GET.
type Source struct {
	client *Client
	url    string
	hints  datasource.Meta
}

// NewSource returns a Source fetching url with client. Non-empty fields of
// hints override what the response headers report.
func NewSource(client *Client, url string, hints datasource.Meta) *Source {
	return &Source{client: client, url: url, hints: hints}
}

// Open issues the GET and returns the raw body plus metadata derived from
// Content-Type (including its charset parameter), Content-Encoding and the
// URL itself. Non-2xx responses are errors.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, datasource.Meta, error) {
	resp, err := s.client.Get(ctx, s.url, nil)
	if err != nil {
		return nil, datasource.Meta{}, fmt.Errorf("get %s: %w", s.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, datasource.Meta{}, fmt.Errorf("get %s: unexpected status %d", s.url, resp.StatusCode)
	}

	meta, err := MetaFromResponse(s.url, resp)
	if err != nil {
		_ = resp.Body.Close()
		return nil, datasource.Meta{}, err
	}
	return resp.Body, meta.Merge(s.hints), nil
}

// MetaFromResponse builds datasource.Meta from response headers. An unknown
// charset parameter is an error rather than a silent UTF-8 assumption.
func MetaFromResponse(rawURL string, resp *http.Response) (datasource.Meta, error) {
	ct := resp.Header.Get("Content-Type")
	m := datasource.Meta{
		ContentType:     ct,
		ContentEncoding: resp.Header.Get("Content-Encoding"),
		NameHint:        NameHintFromURL(rawURL),
	}
	if label := datasource.CharsetFromContentType(ct); label != "" {
		enc, err := datasource.LookupCharset(label)
		if err != nil {
			return datasource.Meta{}, fmt.Errorf("content-type of %s: %w", rawURL, err)
		}
		m.Charset = enc
	}
	return m, nil
}

var _ datasource.Source = (*Source)(nil)
