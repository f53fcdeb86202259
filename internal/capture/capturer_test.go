package capture

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/presellkit/presell-engine/internal/presell"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  map[string]error
	removed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string][]byte),
		putErr:  make(map[string]error),
	}
}

func (s *fakeStore) PutObject(_ context.Context, path, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putErr[path]; err != nil {
		return "", err
	}
	s.objects[path] = append([]byte(nil), data...)
	return "file://" + path, nil
}

func (s *fakeStore) RemoveAll(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, prefix)
	for path := range s.objects {
		if strings.HasPrefix(path, prefix) {
			delete(s.objects, path)
		}
	}
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type fakeSession struct {
	failAt  int
	shots   []int
	closed  bool
	closeMu sync.Mutex
}

func (s *fakeSession) Shoot(_ context.Context, _ string, width int) ([]byte, error) {
	s.shots = append(s.shots, width)
	if s.failAt != 0 && width == s.failAt {
		return nil, errors.New("navigation timed out")
	}
	return []byte(fmt.Sprintf("jpeg-%d", width)), nil
}

func (s *fakeSession) Close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	s.closed = true
}

func newTestCapturer(t *testing.T, store presell.ScreenshotStore, sess session) *Capturer {
	t.Helper()
	c := &Capturer{
		cfg:    Config{ViewportHeight: 1080, NavTimeout: time.Second, JPEGQuality: 85},
		store:  store,
		logger: zap.NewNop(),
	}
	c.newSession = func(context.Context) (session, error) { return sess, nil }
	return c
}

func TestCaptureAllWidthsSucceed(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sess := &fakeSession{}
	c := newTestCapturer(t, store, sess)

	index, err := c.Capture(context.Background(), "https://ex.com", "camp-1")
	require.NoError(t, err)
	require.Len(t, index, len(presell.CaptureWidths))
	require.Equal(t, presell.CaptureWidths, sess.shots)
	require.Equal(t, "campaign-camp-1/screenshot_1024.jpeg", index[1024])
	require.Equal(t, len(presell.CaptureWidths), store.count())
	require.True(t, sess.closed)
}

func TestCaptureIsAllOrNothing(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sess := &fakeSession{failAt: 1280} // ninth width in the run
	c := newTestCapturer(t, store, sess)

	index, err := c.Capture(context.Background(), "https://ex.com", "camp-2")
	require.Error(t, err)
	require.Nil(t, index)

	var captureErr *presell.CaptureError
	require.ErrorAs(t, err, &captureErr)
	require.Equal(t, 1280, captureErr.Width)

	// Earlier widths were written, then swept; nothing survives the abort.
	require.Zero(t, store.count())
	require.Contains(t, store.removed, "campaign-camp-2")
	require.True(t, sess.closed)

	// The run stopped at the failing width instead of limping on.
	require.Equal(t, 1280, sess.shots[len(sess.shots)-1])
}

func TestCapturePersistFailureAborts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.putErr[presell.ScreenshotPath("camp-3", 2560)] = errors.New("disk full")
	sess := &fakeSession{}
	c := newTestCapturer(t, store, sess)

	_, err := c.Capture(context.Background(), "https://ex.com", "camp-3")
	require.Error(t, err)
	require.Zero(t, store.count())
	require.True(t, sess.closed)
}

func TestCaptureSessionStartFailure(t *testing.T) {
	t.Parallel()

	c := newTestCapturer(t, newFakeStore(), &fakeSession{})
	c.newSession = func(context.Context) (session, error) {
		return nil, errors.New("chrome not found")
	}

	_, err := c.Capture(context.Background(), "https://ex.com", "camp-4")
	require.Error(t, err)

	var captureErr *presell.CaptureError
	require.ErrorAs(t, err, &captureErr)
}

func TestCaptureHeadlessIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("headless browser test skipped in short mode")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body><h1>presell target</h1></body></html>`)
	}))
	defer srv.Close()

	store := newFakeStore()
	c, err := New(Config{
		NavTimeout:  10 * time.Second,
		Settle:      100 * time.Millisecond,
		JPEGQuality: 85,
	}, store, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	index, err := c.Capture(context.Background(), srv.URL, "camp-it")
	if err != nil {
		t.Skipf("chromedp unavailable: %v", err)
	}
	require.Len(t, index, len(presell.CaptureWidths))
	require.Equal(t, len(presell.CaptureWidths), store.count())
}
