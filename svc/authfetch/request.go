package authfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
)

// Request is a replayable HTTP request: the body is held in memory so the
// retry can send it again.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NewJSONRequest encodes v as the JSON body of a request.
func NewJSONRequest(method, url string, v any) (Request, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return Request{}, err
	}
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return Request{Method: method, URL: url, Header: h, Body: bytes.TrimSuffix(buf.Bytes(), []byte("\n"))}, nil
}

// NewMultipartRequest builds a POST with a multipart form holding fields and
// one file part named fileField.
func NewMultipartRequest(url string, fields map[string]string, fileField, filename string, file io.Reader) (Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(fileField, filename)
	if err != nil {
		return Request{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return Request{}, err
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return Request{}, err
		}
	}
	if err := w.Close(); err != nil {
		return Request{}, err
	}

	h := make(http.Header)
	h.Set("Content-Type", w.FormDataContentType())
	return Request{Method: http.MethodPost, URL: url, Header: h, Body: buf.Bytes()}, nil
}

func (r Request) build(ctx context.Context) (*http.Request, error) {
	if r.Method == "" {
		return nil, ErrNoMethod
	}
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}
