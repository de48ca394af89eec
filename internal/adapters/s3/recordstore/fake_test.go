package recordstore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
)

// fakeS3 is a tiny in-memory S3 subset (GetObject/PutObject, path-style) served through an
// http.RoundTripper so the adapter runs against the real SDK without network access.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	// deny maps an HTTP method to a forced 403 AccessDenied.
	deny map[string]bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), deny: make(map[string]bool)}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Path-style: /<bucket>/<key>
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if f.deny[req.Method] {
		return xmlError(http.StatusForbidden, "AccessDenied", "Access Denied"), nil
	}
	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[key] = body
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Etag": {`"etag"`}},
			Body:       io.NopCloser(bytes.NewReader(nil)),
		}, nil
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			return xmlError(http.StatusNotFound, "NoSuchKey", "The specified key does not exist."), nil
		}
		return &http.Response{
			StatusCode:    http.StatusOK,
			Header:        http.Header{"Content-Type": {contentType}},
			ContentLength: int64(len(body)),
			Body:          io.NopCloser(bytes.NewReader(body)),
		}, nil
	default:
		return xmlError(http.StatusMethodNotAllowed, "MethodNotAllowed", "unsupported"), nil
	}
}

func (f *fakeS3) put(key string, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = []byte(body)
}

func (f *fakeS3) get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	return string(b), ok
}

func xmlError(status int, code, msg string) *http.Response {
	body := `<?xml version="1.0" encoding="UTF-8"?><Error><Code>` + code + `</Code><Message>` + msg + `</Message></Error>`
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/xml"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestStore(t *testing.T, fake *fakeS3) *Store {
	t.Helper()
	s, err := New(context.Background(), Config{
		Bucket:          "registers",
		Key:             "beneficiaries.csv",
		Region:          "us-east-1",
		Endpoint:        "https://s3.test.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: fake},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}
