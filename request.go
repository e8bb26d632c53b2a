package luxeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

const contentTypeJSON = "application/json"

// Request describes one API call. At most one of JSON, Multipart and Form may
// be set.
type Request struct {
	Method string
	// Path is joined to Config.BaseURL. Absolute http(s) URLs are used as is.
	Path   string
	Query  url.Values
	Header http.Header

	JSON      any
	Multipart *Multipart
	Form      url.Values

	// NoAuth sends the request without a bearer token and never starts the
	// refresh cycle. Login, registration and code exchange use it.
	NoAuth bool
}

// Multipart accumulates a multipart/form-data body. Parts are buffered so the
// body can be replayed after a token refresh.
type Multipart struct {
	parts []multipartPart
}

type multipartPart struct {
	name     string
	value    string
	filename string
	data     []byte
	file     bool
}

// NewMultipart returns an empty form. Parts keep the order they were added in.
func NewMultipart() *Multipart {
	return &Multipart{}
}

// Field appends a text part.
func (m *Multipart) Field(name, value string) *Multipart {
	m.parts = append(m.parts, multipartPart{name: name, value: value})
	return m
}

// File appends a file part.
func (m *Multipart) File(name, filename string, data []byte) *Multipart {
	m.parts = append(m.parts, multipartPart{
		name:     name,
		filename: filename,
		data:     append([]byte(nil), data...),
		file:     true,
	})
	return m
}

// FileFrom reads r to the end and appends it as a file part.
func (m *Multipart) FileFrom(name, filename string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	m.parts = append(m.parts, multipartPart{name: name, filename: filename, data: data, file: true})
	return nil
}

// Len reports the number of parts.
func (m *Multipart) Len() int {
	if m == nil {
		return 0
	}
	return len(m.parts)
}

func (m *Multipart) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range m.parts {
		if !p.file {
			if err := w.WriteField(p.name, p.value); err != nil {
				return nil, "", err
			}
			continue
		}
		part, err := w.CreateFormFile(p.name, p.filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(p.data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// preparedRequest is a Request encoded once; every attempt builds a fresh
// *http.Request from it.
type preparedRequest struct {
	method string
	url    string
	path   string
	header http.Header
	body   []byte
	noAuth bool
}

func (c *Client) prepare(req *Request) (*preparedRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	kinds := 0
	if req.JSON != nil {
		kinds++
	}
	if req.Multipart != nil {
		kinds++
	}
	if req.Form != nil {
		kinds++
	}
	if kinds > 1 {
		return nil, fmt.Errorf("%w: only one of JSON, Multipart and Form may be set", ErrInvalidRequest)
	}

	p := &preparedRequest{
		method: method,
		url:    target.String(),
		path:   target.Path,
		header: req.Header.Clone(),
		noAuth: req.NoAuth,
	}
	if p.header == nil {
		p.header = http.Header{}
	}
	if p.header.Get("Accept") == "" {
		p.header.Set("Accept", contentTypeJSON)
	}

	switch {
	case req.Multipart != nil:
		body, contentType, err := req.Multipart.encode()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		p.body = body
		p.header.Set("Content-Type", contentType)
	case req.Form != nil:
		p.body = []byte(req.Form.Encode())
		p.header.Set("Content-Type", "application/x-www-form-urlencoded")
	default:
		if req.JSON != nil {
			body, err := json.Marshal(req.JSON)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
			}
			p.body = body
		}
		p.header.Set("Content-Type", contentTypeJSON)
	}

	return p, nil
}

func (c *Client) resolve(path string, query url.Values) (*url.URL, error) {
	path = strings.TrimSpace(path)
	var raw string
	switch {
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		raw = path
	case strings.HasPrefix(path, "/"):
		raw = c.cfg.endpoint(path)
	default:
		return nil, fmt.Errorf("%w: path %q must start with /", ErrInvalidRequest, path)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func (p *preparedRequest) build(ctx context.Context, token string) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if p.body != nil {
		body = bytes.NewReader(p.body)
	}
	r, err := http.NewRequestWithContext(ctx, p.method, p.url, body)
	if err != nil {
		return nil, err
	}
	r.Header = p.header.Clone()
	if token != "" && !p.noAuth {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r, nil
}
