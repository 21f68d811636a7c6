package browser_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/autoform/internal/browser"
	"github.com/xkilldash9x/autoform/internal/config"
)

const formPage = `<!doctype html><html><head><title>Facturación</title></head><body>
<form>
	<label for="rfc">RFC</label>
	<input id="rfc" oninput="document.getElementById('echo').textContent = this.value">
	<select id="suc" onchange="document.getElementById('picked').textContent = this.value">
		<option value="">--</option><option value="12">Centro</option>
	</select>
	<a href="/doc.pdf">PDF</a>
</form>
<p id="echo"></p><p id="picked"></p>
</body></html>`

func requireChrome(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser integration test in short mode")
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no Chrome or Chromium binary found")
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/form", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(formPage))
	})
	mux.HandleFunc("/doc.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 test"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestManager_PageLifecycle(t *testing.T) {
	requireChrome(t)
	srv := newTestServer(t)

	cfg := config.NewDefaultConfig()
	cfg.SetBrowserConcurrency(1)
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	mgr, err := browser.NewManager(ctx, zaptest.NewLogger(t), cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, mgr.Shutdown(context.Background())) }()

	page, err := mgr.NewPage(ctx)
	require.NoError(t, err)

	require.NoError(t, page.Navigate(ctx, srv.URL+"/form"))
	require.NoError(t, page.WaitNetworkIdle(ctx, 200*time.Millisecond, 5*time.Second))

	found, err := page.Resolve(ctx, `//*[@id='rfc']`)
	require.NoError(t, err)
	assert.True(t, found)
	found, err = page.Resolve(ctx, `/html/body/form/div[3]/input`)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, page.Focus(ctx, `//*[@id='rfc']`))
	require.NoError(t, page.Clear(ctx, `//*[@id='rfc']`))
	require.NoError(t, page.TypeText(ctx, `//*[@id='rfc']`, "ABC010101AAA", time.Millisecond))
	require.NoError(t, page.SelectOption(ctx, `//*[@id='suc']`, "Centro"))
	assert.Error(t, page.SelectOption(ctx, `//*[@id='suc']`, "Norte"))

	source, err := page.Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, source, `<p id="echo">ABC010101AAA</p>`)
	assert.Contains(t, source, `<p id="picked">12</p>`)

	data, err := page.FetchBytes(ctx, srv.URL+"/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 test"), data)
	_, err = page.FetchBytes(ctx, srv.URL+"/missing.pdf")
	assert.ErrorContains(t, err, "HTTP 404")

	title, err := page.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Facturación", title)
	current, err := page.URL(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(current, "/form"))

	shot, err := page.Screenshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), shot[:4])

	require.NoError(t, page.Click(ctx, "/html/body/form/a"))

	require.NoError(t, page.Close(ctx))
	assert.NoError(t, page.Close(ctx), "second close is a no-op")
}

func TestManager_ConcurrencyLimit(t *testing.T) {
	requireChrome(t)

	cfg := config.NewDefaultConfig()
	cfg.SetBrowserConcurrency(1)
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	mgr, err := browser.NewManager(ctx, zaptest.NewLogger(t), cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, mgr.Shutdown(context.Background())) }()

	first, err := mgr.NewPage(ctx)
	require.NoError(t, err)

	waitCtx, cancelWait := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancelWait()
	_, err = mgr.NewPage(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "second page waits for the only slot")

	require.NoError(t, first.Close(ctx))
	second, err := mgr.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Close(ctx))
}

func TestManager_NewPageAfterShutdown(t *testing.T) {
	requireChrome(t)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()
	mgr, err := browser.NewManager(ctx, zaptest.NewLogger(t), config.NewDefaultConfig())
	require.NoError(t, err)

	require.NoError(t, mgr.Shutdown(ctx))
	_, err = mgr.NewPage(ctx)
	assert.ErrorIs(t, err, browser.ErrManagerClosed)
}
