package requestid

import "net/http"

type transport struct {
	next http.RoundTripper
}

// Transport forwards the request ID found in each outgoing request's context
// as the X-Request-ID header, so server logs can be matched with ours. A nil
// next uses http.DefaultTransport.
func Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &transport{next: next}
}

func (t *transport) RoundTrip(r *http.Request) (*http.Response, error) {
	id := FromContext(r.Context())
	if id == "" || r.Header.Get(Header) != "" {
		return t.next.RoundTrip(r)
	}
	r = r.Clone(r.Context())
	r.Header.Set(Header, id)
	return t.next.RoundTrip(r)
}
