package slowpath

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ImportTeam/extensionBack/internal/aggregator"
	"github.com/ImportTeam/extensionBack/internal/engine"
)

func TestClassify(t *testing.T) {
	e := New(Config{Endpoints: aggregator.DefaultEndpoints()}, nil, nil, nil)

	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "deadline", in: context.DeadlineExceeded, want: engine.ErrTimeout},
		{name: "wrapped deadline", in: fmt.Errorf("run: %w", context.DeadlineExceeded), want: engine.ErrTimeout},
		{name: "canceled context", in: context.Canceled, want: engine.ErrBrowserCrash},
		{name: "frame detached", in: errors.New("page error: frame detached during navigation"), want: engine.ErrBrowserCrash},
		{name: "target closed", in: errors.New("rpc error: target closed"), want: engine.ErrBrowserCrash},
		{name: "websocket drop", in: errors.New("websocket url timeout reached"), want: engine.ErrBrowserCrash},
		{name: "anything else", in: errors.New("could not find node"), want: engine.ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, e.classify(tt.in), tt.want)
		})
	}
}

func TestIsCrashMessage(t *testing.T) {
	assert.True(t, isCrashMessage(errors.New("browser closed unexpectedly")))
	assert.True(t, isCrashMessage(errors.New("session closed")))
	assert.False(t, isCrashMessage(errors.New("selector not found")))
}

type fakePage struct{ ctx context.Context }

func (p fakePage) Ctx() context.Context { return p.ctx }

type fakePool struct {
	leaseErr  error
	released  []bool
	leasedCtx context.Context
}

func (p *fakePool) Lease(context.Context) (Page, error) {
	if p.leaseErr != nil {
		return nil, p.leaseErr
	}
	return fakePage{ctx: p.leasedCtx}, nil
}

func (p *fakePool) Release(_ Page, ok bool) {
	p.released = append(p.released, ok)
}

func TestSearchLeaseTimeout(t *testing.T) {
	pool := &fakePool{leaseErr: context.DeadlineExceeded}
	e := New(Config{Endpoints: aggregator.DefaultEndpoints()}, pool, nil, nil)

	_, err := e.Search(context.Background(), "아무거나")
	assert.ErrorIs(t, err, engine.ErrTimeout)
	assert.Empty(t, pool.released, "a failed lease holds no page to release")
}

func TestSearchLeaseFailure(t *testing.T) {
	pool := &fakePool{leaseErr: errors.New("allocator is gone")}
	e := New(Config{Endpoints: aggregator.DefaultEndpoints()}, pool, nil, nil)

	_, err := e.Search(context.Background(), "아무거나")
	assert.ErrorIs(t, err, engine.ErrBrowserCrash)
}

func TestSearchReleasesPageOnFailure(t *testing.T) {
	// A canceled page context makes chromedp.Run fail immediately with
	// a crash-class error; the page must come back as not-ok.
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	pool := &fakePool{leasedCtx: canceled}
	e := New(Config{Endpoints: aggregator.DefaultEndpoints()}, pool, nil, nil)

	_, err := e.Search(context.Background(), "아무거나")
	assert.Error(t, err)
	if assert.Len(t, pool.released, 1) {
		assert.False(t, pool.released[0], "crashed pages must not return to the free list")
	}
}

func TestBlockedDOM(t *testing.T) {
	assert.True(t, blockedDOM("<html>captcha</html>"), "short challenge body")
	assert.False(t, blockedDOM(bigPage("<div class='prod_item'>ok</div>")))
}

func bigPage(inner string) string {
	out := "<html><body>" + inner
	for i := 0; i < 300; i++ {
		out += "<!-- filler content -->"
	}
	return out + "</body></html>"
}
