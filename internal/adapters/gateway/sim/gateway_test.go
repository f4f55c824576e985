package sim

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// recordingResolver captures decisions the simulated platform delivers.
type recordingResolver struct {
	mu       sync.Mutex
	resolved []bool
	notify   chan struct{}
}

func newRecordingResolver() *recordingResolver {
	return &recordingResolver{notify: make(chan struct{}, 8)}
}

func (r *recordingResolver) ResolveAuthorization(_ int, authorized bool) bool {
	r.mu.Lock()
	r.resolved = append(r.resolved, authorized)
	r.mu.Unlock()
	r.notify <- struct{}{}
	return true
}

func (r *recordingResolver) decisions() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.resolved...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGateway_AuthorizeResolvesAfterDelay(t *testing.T) {
	resolver := newRecordingResolver()
	gw := NewGateway(resolver, Authorize, 5*time.Millisecond, testLogger())

	assert.NoError(t, gw.StartPurchase(context.Background(), 10000))

	select {
	case <-resolver.notify:
	case <-time.After(time.Second):
		t.Fatal("decision never arrived")
	}
	assert.Equal(t, []bool{true}, resolver.decisions())
}

func TestGateway_DenyResolvesFalse(t *testing.T) {
	resolver := newRecordingResolver()
	gw := NewGateway(resolver, Deny, 0, testLogger())

	assert.NoError(t, gw.StartPurchase(context.Background(), 10000))

	select {
	case <-resolver.notify:
	case <-time.After(time.Second):
		t.Fatal("decision never arrived")
	}
	assert.Equal(t, []bool{false}, resolver.decisions())
}

func TestGateway_SilentNeverResolves(t *testing.T) {
	resolver := newRecordingResolver()
	gw := NewGateway(resolver, Silent, 0, testLogger())

	assert.NoError(t, gw.StartPurchase(context.Background(), 10000))

	select {
	case <-resolver.notify:
		t.Fatal("silent gateway must not deliver a decision")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Empty(t, resolver.decisions())
}
