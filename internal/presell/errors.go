package presell

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is returned by campaign stores for unknown IDs.
var ErrCampaignNotFound = errors.New("campaign not found")

// ErrQueueClosed is returned by queue operations after shutdown. Workers
// treat it as terminal and stop consuming.
var ErrQueueClosed = errors.New("queue closed")

// AcquireError reports a failed fetch of the source page. The orchestrator
// recovers from it in automatic mode by falling back to screenshot capture.
type AcquireError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *AcquireError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("acquire %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("acquire %s: %v", e.URL, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// CaptureError reports an aborted screenshot run. A failure at any single
// width aborts the whole run; no partial index survives it.
type CaptureError struct {
	URL   string
	Width int
	Err   error
}

func (e *CaptureError) Error() string {
	if e.Width > 0 {
		return fmt.Sprintf("capture %s at width %d: %v", e.URL, e.Width, e.Err)
	}
	return fmt.Sprintf("capture %s: %v", e.URL, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }
