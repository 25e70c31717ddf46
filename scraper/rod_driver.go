package scraper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// clickTimeout bounds each element lookup and click during interactions.
const clickTimeout = 5 * time.Second

// rodDriver adapts a rod page to the pageDriver interface. Every operation
// runs under its own short deadline so a hung element can only stall one
// action, not the whole interaction pass.
type rodDriver struct {
	ctx  context.Context
	page *rod.Page
}

func newRodDriver(ctx context.Context, page *rod.Page) *rodDriver {
	return &rodDriver{ctx: ctx, page: page}
}

func (d *rodDriver) bound() (*rod.Page, context.CancelFunc) {
	actionCtx, cancel := context.WithTimeout(d.ctx, clickTimeout)
	return d.page.Context(actionCtx), cancel
}

func (d *rodDriver) All(css string) ([]pageElement, error) {
	p, cancel := d.bound()
	defer cancel()
	els, err := p.Elements(css)
	if err != nil {
		return nil, err
	}
	out := make([]pageElement, len(els))
	for i, el := range els {
		out[i] = &rodElement{drv: d, el: el}
	}
	return out, nil
}

func (d *rodDriver) First(loc locator) (pageElement, error) {
	p, cancel := d.bound()
	defer cancel()
	els, err := p.Elements(loc.css)
	if err != nil {
		return nil, err
	}
	if loc.text == "" {
		if len(els) == 0 {
			return nil, errNoMatch
		}
		return &rodElement{drv: d, el: els[0]}, nil
	}
	needle := strings.ToLower(loc.text)
	for _, el := range els {
		t, textErr := el.Text()
		if textErr != nil {
			continue
		}
		if strings.Contains(strings.ToLower(t), needle) {
			return &rodElement{drv: d, el: el}, nil
		}
	}
	return nil, errNoMatch
}

func (d *rodDriver) ElementCount() (int, error) {
	p, cancel := d.bound()
	defer cancel()
	res, err := p.Eval(`() => document.querySelectorAll('*').length`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (d *rodDriver) ScrollHeight() (int, error) {
	p, cancel := d.bound()
	defer cancel()
	res, err := p.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (d *rodDriver) ScrollToBottom() error {
	p, cancel := d.bound()
	defer cancel()
	if _, err := p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		return err
	}
	// The End key reaches scroll listeners that ignore programmatic scrolls.
	if err := p.Keyboard.Press(input.End); err != nil {
		slog.Debug("end-key press failed", "error", err)
	}
	return nil
}

func (d *rodDriver) URL() string {
	p, cancel := d.bound()
	defer cancel()
	return evalStringOrEmpty(p, `() => window.location.href`)
}

func (d *rodDriver) HTML() (string, error) {
	p, cancel := d.bound()
	defer cancel()
	return p.HTML()
}

func (d *rodDriver) WaitQuiet(timeout time.Duration) {
	waitQuiet(d.ctx, d.page, timeout)
}

// WaitNavigated waits for the post-click page to finish loading, falling
// back to a fixed pause when the load state cannot be observed.
func (d *rodDriver) WaitNavigated(timeout time.Duration) {
	navCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	if err := d.page.Context(navCtx).WaitLoad(); err != nil {
		d.Sleep(time.Second)
	}
}

func (d *rodDriver) Sleep(wait time.Duration) {
	sleepCtx(d.ctx, wait)
}

// rodElement rebinds its element to a fresh per-action context on every
// operation; the lookup context that produced it is long cancelled.
type rodElement struct {
	drv *rodDriver
	el  *rod.Element
}

func (e *rodElement) act() (*rod.Element, context.CancelFunc) {
	actionCtx, cancel := context.WithTimeout(e.drv.ctx, clickTimeout)
	return e.el.Context(actionCtx), cancel
}

func (e *rodElement) Text() (string, error) {
	el, cancel := e.act()
	defer cancel()
	return el.Text()
}

func (e *rodElement) Visible() (bool, error) {
	el, cancel := e.act()
	defer cancel()
	return el.Visible()
}

func (e *rodElement) Click() error {
	el, cancel := e.act()
	defer cancel()
	return el.Click(proto.InputMouseButtonLeft, 1)
}
