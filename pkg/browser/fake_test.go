package browser

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// fakePage records every call. Locators listed in timeouts fail with
// ErrTimeout; only locators listed in visible pass a probe.
type fakePage struct {
	mu       sync.Mutex
	calls    []string
	visible  map[string]bool
	timeouts map[string]bool
	url      string
	html     string
	shotErr  error

	inFlight atomic.Int32
	overlap  atomic.Bool
	delay    time.Duration
}

func newFakePage() *fakePage {
	return &fakePage{
		visible:  map[string]bool{},
		timeouts: map[string]bool{},
		url:      "about:blank",
	}
}

func (p *fakePage) enter(call string) func() {
	if p.inFlight.Add(1) > 1 {
		p.overlap.Store(true)
	}
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return func() { p.inFlight.Add(-1) }
}

func (p *fakePage) act(verb string, loc Locator) error {
	defer p.enter(verb + " " + loc.String())()
	if p.timeouts[loc.String()] {
		return fmt.Errorf("%s: %w", verb, ErrTimeout)
	}
	return nil
}

func (p *fakePage) Goto(url string) error {
	defer p.enter("goto " + url)()
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *fakePage) Click(loc Locator, _ time.Duration) error { return p.act("click", loc) }

func (p *fakePage) Fill(loc Locator, text string, _ time.Duration) error {
	return p.act("fill", loc)
}

func (p *fakePage) Press(loc Locator, key string, _ time.Duration) error {
	return p.act("press:"+key, loc)
}

func (p *fakePage) IsVisible(loc Locator, _ time.Duration) (bool, error) {
	defer p.enter("probe " + loc.String())()
	return p.visible[loc.String()], nil
}

func (p *fakePage) Wheel(deltaY int) error {
	defer p.enter(fmt.Sprintf("wheel %d", deltaY))()
	return nil
}

func (p *fakePage) Pause(d time.Duration) {
	defer p.enter("pause " + d.String())()
}

func (p *fakePage) Screenshot() ([]byte, error) {
	defer p.enter("screenshot")()
	if p.shotErr != nil {
		return nil, p.shotErr
	}
	return []byte("png"), nil
}

func (p *fakePage) Content() (string, error) {
	defer p.enter("content")()
	return p.html, nil
}

func (p *fakePage) URL() string {
	defer p.enter("url")()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) Highlight(selector string) error {
	defer p.enter("highlight " + selector)()
	return errors.New("no element")
}

func (p *fakePage) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// actions returns the recorded calls that act on elements.
func (p *fakePage) actions() []string {
	var out []string
	for _, c := range p.recorded() {
		for _, prefix := range []string{"click ", "fill ", "press:"} {
			if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
				out = append(out, c)
			}
		}
	}
	return out
}

type fakeLauncher struct {
	page     *fakePage
	err      error
	closed   []string
	failing  map[string]bool
	launches int
}

func (l *fakeLauncher) Launch() (*Handle, error) {
	l.launches++
	if l.err != nil {
		return nil, l.err
	}
	stage := func(name string) Stage {
		return Stage{Name: name, Close: func() error {
			l.closed = append(l.closed, name)
			if l.failing[name] {
				return errors.New(name + " close failed")
			}
			return nil
		}}
	}
	return &Handle{
		Page:   l.page,
		Stages: []Stage{stage("page"), stage("context"), stage("browser"), stage("engine")},
	}, nil
}
