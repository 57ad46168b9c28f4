// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser/stealth"
)

// Session is one browser process with a single tab. It implements
// schemas.Session and is owned by exactly one task.
type Session struct {
	id     string
	ctx    context.Context // chromedp tab context
	cancel context.CancelFunc
	// allocCancel terminates the browser process.
	allocCancel context.CancelFunc
	logger      *zap.Logger
	persona     stealth.Persona
	opTimeout   time.Duration
	onClose     func()

	mu       sync.Mutex
	isClosed bool
}

var _ schemas.Session = (*Session)(nil)

// ID returns the unique identifier for the session.
func (s *Session) ID() string { return s.id }

// Persona returns the fingerprint presented by this session.
func (s *Session) Persona() stealth.Persona { return s.persona }

// Close shuts the browser down and releases every context. Only the first
// call has an effect.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	// Ask the browser to exit gracefully, but never wait past ctx.
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(s.ctx) }()
	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
		s.logger.Warn("Graceful browser shutdown timed out, killing process.", zap.Error(err))
	}

	s.cancel()
	// Blocks until the process has exited.
	s.allocCancel()

	if s.onClose != nil {
		s.onClose()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("browser: error while closing session: %w", err)
	}
	return nil
}

func (s *Session) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isClosed
}

// run executes actions bounded by both the session lifetime and ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.closed() {
		return schemas.ErrSessionClosed
	}
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// runOp is run with the per-operation timeout applied.
func (s *Session) runOp(ctx context.Context, actions ...chromedp.Action) error {
	if s.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
	}
	return s.run(ctx, actions...)
}

// Navigate loads url and waits for the body to be ready. Failures are
// reported as *schemas.SessionError.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return &schemas.SessionError{Op: "navigate", URL: url, Err: err}
	}
	return nil
}

// URL returns the current document location.
func (s *Session) URL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("browser: failed to read location: %w", err)
	}
	return url, nil
}

// Evaluate runs expression, awaiting a returned promise, and decodes the
// JSON result into res. A null or undefined result leaves res untouched.
func (s *Session) Evaluate(ctx context.Context, expression string, res interface{}) error {
	var obj *runtime.RemoteObject
	err := s.run(ctx, chromedp.Evaluate(expression, &obj, byValue))
	if err != nil {
		return fmt.Errorf("browser: script evaluation failed: %w", err)
	}
	if res == nil || obj == nil || len(obj.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal([]byte(obj.Value), res); err != nil {
		return fmt.Errorf("browser: failed to decode script result: %w", err)
	}
	return nil
}

// byValue awaits promises and serializes the result. chromedp only asks for
// a serialized result when the destination is not a RemoteObject.
func byValue(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true).WithReturnByValue(true)
}

// FullScreenshot captures the whole document as PNG.
func (s *Session) FullScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 selects lossless PNG encoding.
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("browser: screenshot failed: %w", err)
	}
	return buf, nil
}

// Sleep pauses for d unless ctx or the session ends first.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return schemas.ErrSessionClosed
	}
}

// query translates a locator into a chromedp selector. The focused element
// has no selector form and is handled through scripts.
func query(loc schemas.Locator) (string, []chromedp.QueryOption, bool) {
	switch loc.Kind {
	case schemas.LocatorCSS:
		return loc.Value, []chromedp.QueryOption{chromedp.ByQuery}, true
	case schemas.LocatorXPath:
		return loc.Value, []chromedp.QueryOption{chromedp.BySearch}, true
	case schemas.LocatorID:
		return fmt.Sprintf("[id=%q]", loc.Value), []chromedp.QueryOption{chromedp.ByQuery}, true
	case schemas.LocatorName:
		return fmt.Sprintf("[name=%q]", loc.Value), []chromedp.QueryOption{chromedp.ByQuery}, true
	}
	return "", nil, false
}

// WaitFor blocks until the element addressed by loc exists.
func (s *Session) WaitFor(ctx context.Context, loc schemas.Locator) error {
	if sel, opts, ok := query(loc); ok {
		if err := s.runOp(ctx, chromedp.WaitReady(sel, opts...)); err != nil {
			return fmt.Errorf("browser: waiting for %s: %w", loc, err)
		}
		return nil
	}
	var found bool
	if err := s.evaluateOp(ctx, MustScript(`(loc) => fpFind(loc) !== null`, loc), &found); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", schemas.ErrElementNotFound, loc)
	}
	return nil
}

func (s *Session) evaluateOp(ctx context.Context, expression string, res interface{}) error {
	if s.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
	}
	return s.Evaluate(ctx, expression, res)
}

// Bounds returns the element's bounding box in page coordinates.
func (s *Session) Bounds(ctx context.Context, loc schemas.Locator) (schemas.Rect, error) {
	var rect *schemas.Rect
	script := MustScript(`(loc) => { const el = fpFind(loc); return el ? fpRect(el) : null; }`, loc)
	if err := s.evaluateOp(ctx, script, &rect); err != nil {
		return schemas.Rect{}, err
	}
	if rect == nil {
		return schemas.Rect{}, fmt.Errorf("%w: %s", schemas.ErrElementNotFound, loc)
	}
	return *rect, nil
}

// Value returns the element's current value, or its text for editable
// regions without one.
func (s *Session) Value(ctx context.Context, loc schemas.Locator) (string, error) {
	var value *string
	script := MustScript(`(loc) => {
		const el = fpFind(loc);
		if (!el) return null;
		if ('value' in el && typeof el.value === 'string') return el.value;
		return el.isContentEditable ? el.innerText : null;
	}`, loc)
	if err := s.evaluateOp(ctx, script, &value); err != nil {
		return "", err
	}
	if value == nil {
		return "", fmt.Errorf("%w: %s", schemas.ErrElementNotFound, loc)
	}
	return *value, nil
}

// Click clicks the element addressed by loc.
func (s *Session) Click(ctx context.Context, loc schemas.Locator) error {
	if sel, opts, ok := query(loc); ok {
		if err := s.runOp(ctx, chromedp.Click(sel, append(opts, chromedp.NodeVisible)...)); err != nil {
			return fmt.Errorf("browser: click %s: %w", loc, err)
		}
		return nil
	}
	var clicked bool
	script := MustScript(`(loc) => { const el = fpFind(loc); if (!el) return false; el.click(); return true; }`, loc)
	if err := s.evaluateOp(ctx, script, &clicked); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: %s", schemas.ErrElementNotFound, loc)
	}
	return nil
}

// scrollTo brings a page coordinate into the viewport and returns the
// matching viewport coordinate.
func (s *Session) scrollTo(ctx context.Context, p schemas.Point) (schemas.Point, error) {
	var scroll schemas.Point
	script := MustScript(`(p) => {
		window.scrollTo(Math.max(0, p.x - window.innerWidth / 2), Math.max(0, p.y - window.innerHeight / 2));
		return { x: window.scrollX, y: window.scrollY };
	}`, p)
	if err := s.evaluateOp(ctx, script, &scroll); err != nil {
		return schemas.Point{}, err
	}
	return schemas.Point{X: p.X - scroll.X, Y: p.Y - scroll.Y}, nil
}

// ClickAt clicks a position given in page coordinates.
func (s *Session) ClickAt(ctx context.Context, p schemas.Point) error {
	vp, err := s.scrollTo(ctx, p)
	if err != nil {
		return err
	}
	if err := s.runOp(ctx, chromedp.MouseClickXY(vp.X, vp.Y)); err != nil {
		return fmt.Errorf("browser: click at (%.0f,%.0f): %w", p.X, p.Y, err)
	}
	return nil
}

// Clear removes the element's content and fires input/change events.
func (s *Session) Clear(ctx context.Context, loc schemas.Locator) error {
	return s.SetValue(ctx, loc, "")
}

// SetValue replaces the element's content in one operation.
func (s *Session) SetValue(ctx context.Context, loc schemas.Locator, value string) error {
	var ok bool
	script := MustScript(`(loc, value) => {
		const el = fpFind(loc);
		if (!el) return false;
		el.focus();
		fpSetValue(el, value);
		return true;
	}`, loc, value)
	if err := s.evaluateOp(ctx, script, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", schemas.ErrElementNotFound, loc)
	}
	return nil
}

// SelectOption selects the first option of a <select> whose value (or
// visible text) equals value, ignoring case and surrounding whitespace.
func (s *Session) SelectOption(ctx context.Context, loc schemas.Locator, value string, match schemas.SelectMatch) (string, error) {
	var chosen *string
	script := MustScript(`(loc, value, match) => {
		const el = fpFind(loc);
		if (!el || el.tagName !== 'SELECT') return null;
		const norm = (s) => String(s || '').replace(/\s+/g, ' ').trim().toLowerCase();
		const want = norm(value);
		for (const opt of el.options) {
			const have = match === 'label' ? norm(opt.text) : norm(opt.value);
			if (have === want) {
				fpSetValue(el, opt.value);
				return opt.value;
			}
		}
		return null;
	}`, loc, value, match)
	if err := s.evaluateOp(ctx, script, &chosen); err != nil {
		return "", err
	}
	if chosen == nil {
		return "", fmt.Errorf("%w: %q by %s in %s", schemas.ErrOptionNotFound, value, match, loc)
	}
	return *chosen, nil
}

// SendKeys types keys into the focused element.
func (s *Session) SendKeys(ctx context.Context, keys string) error {
	return s.run(ctx, chromedp.KeyEvent(keys))
}

var namedKeys = map[string]string{
	"Tab":       kb.Tab,
	"Enter":     kb.Enter,
	"Backspace": kb.Backspace,
	"Escape":    kb.Escape,
}

// PressKey dispatches a named key such as "Tab" or "Enter".
func (s *Session) PressKey(ctx context.Context, key string) error {
	if k, ok := namedKeys[key]; ok {
		key = k
	}
	return s.run(ctx, chromedp.KeyEvent(key))
}

// SetUploadFiles assigns files to the file input addressed by loc.
func (s *Session) SetUploadFiles(ctx context.Context, loc schemas.Locator, files []string) error {
	return s.runOp(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, _, err := runtime.Evaluate(MustScript(`(loc) => {
			const el = fpFind(loc);
			return el && el.tagName === 'INPUT' && el.type === 'file' ? el : null;
		}`, loc)).Do(ctx)
		if err != nil {
			return fmt.Errorf("browser: resolving %s: %w", loc, err)
		}
		if obj == nil || obj.ObjectID == "" {
			return fmt.Errorf("%w: file input %s", schemas.ErrElementNotFound, loc)
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()
		return dom.SetFileInputFiles(files).WithObjectID(obj.ObjectID).Do(ctx)
	}))
}

// dropSequence is the event order a native file drop produces.
var dropSequence = []input.DispatchDragEventType{input.DragEnter, input.DragOver, input.Drop}

// DropFiles performs a drag-enter, drag-over, drop sequence carrying files
// at a page coordinate.
func (s *Session) DropFiles(ctx context.Context, p schemas.Point, files []string) error {
	vp, err := s.scrollTo(ctx, p)
	if err != nil {
		return err
	}
	data := &input.DragData{
		Items:              []*input.DragDataItem{},
		Files:              files,
		DragOperationsMask: 1, // copy
	}
	return s.runOp(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, typ := range dropSequence {
			if err := input.DispatchDragEvent(typ, vp.X, vp.Y, data).Do(ctx); err != nil {
				return fmt.Errorf("browser: %s event failed: %w", typ, err)
			}
		}
		return nil
	}))
}

// ErrNoFileChooser is returned when clicking a trigger did not open a file
// chooser before the operation deadline.
var ErrNoFileChooser = errors.New("file chooser did not open")

// ChooseFiles clicks trigger with file chooser interception enabled and
// answers the intercepted chooser with files.
func (s *Session) ChooseFiles(ctx context.Context, trigger schemas.Locator, files []string) error {
	if s.closed() {
		return schemas.ErrSessionClosed
	}
	if s.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opTimeout)
		defer cancel()
	}
	listenCtx, cancelListen := CombineContext(s.ctx, ctx)
	defer cancelListen()

	opened := make(chan cdp.BackendNodeID, 1)
	// The listener is removed when listenCtx is canceled.
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventFileChooserOpened); ok {
			select {
			case opened <- e.BackendNodeID:
			default:
			}
		}
	})

	if err := chromedp.Run(listenCtx, page.SetInterceptFileChooserDialog(true)); err != nil {
		return fmt.Errorf("browser: enabling file chooser interception: %w", err)
	}
	defer func() {
		_ = chromedp.Run(s.ctx, page.SetInterceptFileChooserDialog(false))
	}()

	if err := s.Click(listenCtx, trigger); err != nil {
		return err
	}

	select {
	case id := <-opened:
		if err := chromedp.Run(listenCtx, dom.SetFileInputFiles(files).WithBackendNodeID(id)); err != nil {
			return fmt.Errorf("browser: answering file chooser: %w", err)
		}
		return nil
	case <-listenCtx.Done():
		return fmt.Errorf("%w after clicking %s: %v", ErrNoFileChooser, trigger, listenCtx.Err())
	}
}
