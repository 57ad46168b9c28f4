// internal/browser/session_integration_test.go
package browser_test

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser"
	"github.com/xkilldash9x/formpilot/internal/config"
)

const testForm = `<!DOCTYPE html><html><body>
<form id="apply">
  <label for="email">Email</label><input id="email" name="email" type="email">
  <select id="country" name="country">
    <option value="">Choose</option>
    <option value="de">Germany</option>
    <option value="us">United States</option>
  </select>
  <input id="resume" name="resume" type="file">
  <div id="dropzone" style="width:240px;height:80px;border:1px dashed #999">Drop your resume here</div>
  <button type="submit">Send</button>
</form>
<script>
  window.__typed = '';
  window.__dropped = 0;
  document.getElementById('email').addEventListener('input', (e) => { window.__typed = e.target.value; });
  const dz = document.getElementById('dropzone');
  ['dragenter', 'dragover'].forEach((name) => dz.addEventListener(name, (e) => e.preventDefault()));
  dz.addEventListener('drop', (e) => { e.preventDefault(); window.__dropped = e.dataTransfer.files.length; });
</script>
</body></html>`

// requireChrome skips the test when no Chrome binary can be found.
func requireChrome(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("browser integration test skipped in short mode")
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no Chrome or Chromium binary found in PATH")
}

func setupManager(t *testing.T) *browser.Manager {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.BrowserCfg.Headless = true
	cfg.AutomationCfg.OperationTimeout = 5 * time.Second
	return browser.NewManager(cfg, zaptest.NewLogger(t), rand.New(rand.NewSource(1)))
}

func openSession(t *testing.T, m *browser.Manager) schemas.Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	s, err := m.OpenSession(ctx, schemas.SessionOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestSession_PageOperations(t *testing.T) {
	requireChrome(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testForm)
	}))
	defer server.Close()

	m := setupManager(t)
	s := openSession(t, m)
	ctx := context.Background()

	require.NoError(t, s.Navigate(ctx, server.URL))

	url, err := s.URL(ctx)
	require.NoError(t, err)
	assert.Contains(t, url, server.URL)

	t.Run("StealthEvasions", func(t *testing.T) {
		var webdriver interface{}
		require.NoError(t, s.Evaluate(ctx, `navigator.webdriver`, &webdriver))
		assert.Nil(t, webdriver)
	})

	emailLoc := schemas.Locator{Kind: schemas.LocatorID, Value: "email"}

	t.Run("TypeIntoFocusedElement", func(t *testing.T) {
		require.NoError(t, s.Click(ctx, emailLoc))
		require.NoError(t, s.SendKeys(ctx, "jane@example.com"))
		value, err := s.Value(ctx, emailLoc)
		require.NoError(t, err)
		assert.Equal(t, "jane@example.com", value)
	})

	t.Run("SetValueFiresInput", func(t *testing.T) {
		require.NoError(t, s.SetValue(ctx, emailLoc, "john@example.com"))
		var typed string
		require.NoError(t, s.Evaluate(ctx, `window.__typed`, &typed))
		assert.Equal(t, "john@example.com", typed)
	})

	t.Run("SelectOption", func(t *testing.T) {
		loc := schemas.Locator{Kind: schemas.LocatorName, Value: "country"}
		chosen, err := s.SelectOption(ctx, loc, "united states", schemas.MatchOptionLabel)
		require.NoError(t, err)
		assert.Equal(t, "us", chosen)

		_, err = s.SelectOption(ctx, loc, "France", schemas.MatchOptionLabel)
		assert.ErrorIs(t, err, schemas.ErrOptionNotFound)
	})

	t.Run("Bounds", func(t *testing.T) {
		rect, err := s.Bounds(ctx, emailLoc)
		require.NoError(t, err)
		assert.False(t, rect.IsEmpty())

		_, err = s.Bounds(ctx, schemas.Locator{Kind: schemas.LocatorCSS, Value: "#missing"})
		assert.ErrorIs(t, err, schemas.ErrElementNotFound)
	})

	t.Run("SetUploadFiles", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "resume.pdf")
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

		require.NoError(t, s.SetUploadFiles(ctx, schemas.Locator{Kind: schemas.LocatorID, Value: "resume"}, []string{path}))
		var count int
		require.NoError(t, s.Evaluate(ctx, `document.getElementById('resume').files.length`, &count))
		assert.Equal(t, 1, count)
	})

	t.Run("DropFiles", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "resume.pdf")
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

		zone, err := s.Bounds(ctx, schemas.Locator{Kind: schemas.LocatorID, Value: "dropzone"})
		require.NoError(t, err)
		require.NoError(t, s.DropFiles(ctx, zone.Center(), []string{path}))

		var dropped int
		require.NoError(t, s.Evaluate(ctx, `window.__dropped`, &dropped))
		assert.Equal(t, 1, dropped)
	})

	t.Run("XPathForQuotedIDs", func(t *testing.T) {
		for _, id := range []string{`say "hi"`, `it's`, `both "a" and 'b'`} {
			var found bool
			require.NoError(t, s.Evaluate(ctx, browser.MustScript(`(id) => {
				const el = document.createElement('span');
				el.id = id;
				document.body.appendChild(el);
				const xp = fpXPath(el);
				const hit = document.evaluate(xp, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
				el.remove();
				return hit === el;
			}`, id), &found))
			assert.True(t, found, id)
		}
	})

	t.Run("FullScreenshot", func(t *testing.T) {
		png, err := s.FullScreenshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte("\x89PNG"), png[:4])
	})
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	requireChrome(t)
	m := setupManager(t)
	s := openSession(t, m)
	assert.Equal(t, 1, m.ActiveSessions())

	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 0, m.ActiveSessions())

	err := s.Navigate(context.Background(), "about:blank")
	assert.ErrorIs(t, err, schemas.ErrSessionClosed)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, m.Shutdown(shutdownCtx))
}

func TestManager_LaunchFailureIsSessionError(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.BrowserCfg.ExecPath = filepath.Join(t.TempDir(), "no-such-chrome")
	cfg.BrowserCfg.LaunchTimeout = 5 * time.Second
	m := browser.NewManager(cfg, zaptest.NewLogger(t), rand.New(rand.NewSource(1)))

	s, err := m.OpenSession(context.Background(), schemas.SessionOptions{})
	require.Error(t, err)
	assert.Nil(t, s)

	var se *schemas.SessionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "launch", se.Op)
	assert.Equal(t, 0, m.ActiveSessions())
}
