package shellcache

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// Snapshot is a stored response: everything needed to replay it verbatim.
type Snapshot struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"storedAt"`
}

// hopHeaders are connection-scoped and never stored or forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Capture reads and closes res.Body.
func Capture(rawURL string, res *http.Response) (*Snapshot, error) {
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	header := res.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}
	header.Del("Content-Length")
	return &Snapshot{
		URL:      rawURL,
		Status:   res.StatusCode,
		Header:   header,
		Body:     body,
		StoredAt: time.Now().UTC(),
	}, nil
}

// OK mirrors the Fetch API notion of a successful response.
func (s *Snapshot) OK() bool { return s.Status >= 200 && s.Status < 300 }

// Write replays the snapshot. HEAD requests get headers only.
func (s *Snapshot) Write(w http.ResponseWriter, r *http.Request) {
	for k, vs := range s.Header {
		w.Header()[k] = append([]string(nil), vs...)
	}
	w.WriteHeader(s.Status)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(s.Body)
}
