package adapter

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
)

// roundTripFunc adapts a function into an http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// testClient returns a client that sends every request to srv, whatever host
// the adapter asked for. The original host is kept on X-Original-Host.
func testClient(srv *httptest.Server) *http.Client {
	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			out := req.Clone(req.Context())
			out.Header.Set("X-Original-Host", req.URL.Host)
			out.URL.Scheme = "http"
			out.URL.Host = srv.Listener.Addr().String()
			resp, err := http.DefaultTransport.RoundTrip(out)
			if resp != nil {
				resp.Request = req
			}
			return resp, err
		}),
	}
}

// jsonServer serves body for every request and counts hits.
func jsonServer(body string, hits *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func statusServer(code int, retryAfter string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		w.WriteHeader(code)
	}))
}
