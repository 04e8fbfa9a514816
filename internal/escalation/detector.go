package escalation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/donaldgifford/discount-notifier/internal/collector"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// DefaultBlockingStatuses are the HTTP statuses treated as anti-automation
// blocks.
var DefaultBlockingStatuses = []int{401, 403, 406, 429, 503}

// DefaultMarkers are case-insensitive body fragments that identify a
// challenge page.
var DefaultMarkers = []string{"captcha", "cf-challenge", "access denied", "just a moment", "px-captcha"}

// BlockedError is returned in place of a page the detector judged blocked.
type BlockedError struct {
	URL      string
	Evidence string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked fetching %s: %s", e.URL, e.Evidence)
}

// Detector decides whether a direct fetch hit an anti-automation defense.
type Detector struct {
	statuses map[int]bool
	markers  [][]byte
}

// NewDetector creates a Detector. Empty arguments select the defaults.
func NewDetector(statuses []int, markers []string) *Detector {
	if len(statuses) == 0 {
		statuses = DefaultBlockingStatuses
	}
	if len(markers) == 0 {
		markers = DefaultMarkers
	}

	d := &Detector{statuses: make(map[int]bool, len(statuses))}
	for _, s := range statuses {
		d.statuses[s] = true
	}
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			d.markers = append(d.markers, []byte(strings.ToLower(m)))
		}
	}
	return d
}

// InspectPage reports a block for a blocking status or an empty body.
func (d *Detector) InspectPage(p *collector.Page) (blocked bool, evidence string) {
	if d.statuses[p.StatusCode] {
		return true, fmt.Sprintf("status %d", p.StatusCode)
	}
	if len(bytes.TrimSpace(p.Body)) == 0 {
		return true, "empty body"
	}
	return false, ""
}

// Marker returns the first challenge marker found in body.
func (d *Detector) Marker(body []byte) (string, bool) {
	lower := bytes.ToLower(body)
	for _, m := range d.markers {
		if bytes.Contains(lower, m) {
			return string(m), true
		}
	}
	return "", false
}

// Classify decides whether a failed direct collection should escalate.
// last is the final page the collector saw, if any. A page without product
// data escalates, and a challenge marker on it becomes the evidence. Errors
// that are not blocking signals never escalate.
func (d *Detector) Classify(err error, last *collector.Page) (escalate bool, evidence string) {
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return true, blocked.Evidence
	}

	var serr *collector.StatusError
	if errors.As(err, &serr) {
		if d.statuses[serr.StatusCode] {
			return true, fmt.Sprintf("status %d", serr.StatusCode)
		}
		return false, fmt.Sprintf("status %d", serr.StatusCode)
	}

	if errors.Is(err, collector.ErrEmptyBody) {
		return true, "empty body"
	}

	if errors.Is(err, collector.ErrNoStructuredData) {
		if last != nil {
			if m, ok := d.Marker(last.Body); ok {
				return true, fmt.Sprintf("challenge marker %q", m)
			}
		}
		return true, "no structured data"
	}

	var terr *domain.TransportError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false, "cancelled"
	case errors.As(err, &terr):
		return false, "transport error"
	default:
		return false, "collector error"
	}
}

// observingTransport applies the detector to every direct page and keeps
// the last one for classification.
type observingTransport struct {
	inner    collector.Transport
	detector *Detector

	mu   sync.Mutex
	last *collector.Page
}

func (o *observingTransport) Mode() domain.TransportMode { return o.inner.Mode() }

func (o *observingTransport) Fetch(ctx context.Context, url string) (*collector.Page, error) {
	page, err := o.inner.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.last = page
	o.mu.Unlock()

	if blocked, evidence := o.detector.InspectPage(page); blocked {
		return nil, &BlockedError{URL: url, Evidence: evidence}
	}
	return page, nil
}

func (o *observingTransport) lastPage() *collector.Page {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}
