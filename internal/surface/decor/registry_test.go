package decor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmuller/camdeck/internal/dom/domtest"
	"github.com/kmuller/camdeck/internal/surface/visibility"
)

const dashboardPage = `<html><body>
<nav class="NavBar"></nav>
<header class="HeaderBar">
  <div class="HeaderLoader"></div>
  <div class="header-left"></div>
  <div class="header-actions"><span class="existing"></span></div>
</header>
</body></html>`

func testAnchors() Anchors {
	return Anchors{
		NavSelector:          "nav",
		HeaderSelector:       "header",
		HeaderLoaderSelector: "[class*='HeaderLoader']",
	}
}

func newRegistry(t *testing.T, doc *domtest.Document, controls Controls) *Registry {
	t.Helper()
	return New(Options{
		Doc:          doc,
		Controls:     controls,
		Anchors:      testAnchors(),
		AnchorWait:   50 * time.Millisecond,
		PollInterval: 2 * time.Millisecond,
		Log:          zerolog.Nop(),
	})
}

func TestInjectAllPlacesEveryDecoration(t *testing.T) {
	doc := domtest.New(t, dashboardPage, "http://localhost:7443/app/dashboard")
	r := newRegistry(t, doc, Controls{})

	updaters := r.InjectAll(context.Background())
	assert.Len(t, updaters, 4)

	// Nav toggle lives inside the nav.
	doc.MustQuery("nav #" + IDNavToggle)

	// Header decorations prepend into the last non-loader child.
	for _, id := range []string{IDHeaderToggle, IDFullscreenToggle, IDReturnDashboard} {
		doc.MustQuery(".header-actions #" + id)
	}
}

func TestHeaderAnchorFallsBackToHeaderItself(t *testing.T) {
	// Only a loader and a single candidate child: append to the header.
	page := `<html><body>
<header class="HeaderBar">
  <div class="HeaderLoader"></div>
  <div class="header-left"></div>
</header>
</body></html>`
	doc := domtest.New(t, page, "http://localhost:7443/app/dashboard")
	r := newRegistry(t, doc, Controls{})

	updater, err := r.InjectHeaderToggle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, updater)

	doc.MustQuery("header > #" + IDHeaderToggle)
	el, err := doc.Query(context.Background(), ".header-left #"+IDHeaderToggle)
	assert.Error(t, err)
	assert.Nil(t, el)
}

func TestInjectionIsIdempotent(t *testing.T) {
	doc := domtest.New(t, dashboardPage, "http://localhost:7443/app/dashboard")
	r := newRegistry(t, doc, Controls{})

	first := r.InjectAll(context.Background())
	second := r.InjectAll(context.Background())
	require.Len(t, first, 4)
	require.Len(t, second, 4)

	for _, id := range []string{IDNavToggle, IDHeaderToggle, IDFullscreenToggle, IDReturnDashboard} {
		all, err := doc.QueryAll(context.Background(), "#"+id)
		require.NoError(t, err)
		assert.Len(t, all, 1, id)
	}
}

func TestBindingRoutesClicksToControls(t *testing.T) {
	doc := domtest.New(t, dashboardPage, "http://localhost:7443/app/dashboard")

	var navs, headers, fulls, returns int
	r := newRegistry(t, doc, Controls{
		ToggleNav:         func() { navs++ },
		ToggleHeader:      func() { headers++ },
		ToggleFullscreen:  func() { fulls++ },
		ReturnToDashboard: func() { returns++ },
	})
	r.InjectAll(context.Background())

	require.True(t, doc.HasBinding(ControlBinding))
	doc.CallBinding(ControlBinding, "toggle-nav")
	doc.CallBinding(ControlBinding, "toggle-header")
	doc.CallBinding(ControlBinding, "toggle-fullscreen")
	doc.CallBinding(ControlBinding, "return-dashboard")
	doc.CallBinding(ControlBinding, "no-such-action")

	assert.Equal(t, 1, navs)
	assert.Equal(t, 1, headers)
	assert.Equal(t, 1, fulls)
	assert.Equal(t, 1, returns)
}

func TestMissingAnchorYieldsNilUpdater(t *testing.T) {
	page := `<html><body><header class="HeaderBar"><div></div></header></body></html>`
	doc := domtest.New(t, page, "http://localhost:7443/app/dashboard")
	r := newRegistry(t, doc, Controls{})

	updater, err := r.InjectNavToggle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, updater)

	updaters := r.InjectAll(context.Background())
	assert.NotContains(t, updaters, IDNavToggle)
	assert.Contains(t, updaters, IDHeaderToggle)
}

func TestUpdaterReflectsSnapshot(t *testing.T) {
	doc := domtest.New(t, dashboardPage, "http://localhost:7443/app/dashboard")
	r := newRegistry(t, doc, Controls{})

	updater, err := r.InjectNavToggle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, updater)

	btn := doc.MustQuery("#" + IDNavToggle)

	updater(visibility.State{NavHidden: true})
	title, _, err := btn.Attribute(context.Background(), "title")
	require.NoError(t, err)
	assert.Equal(t, "Show navigation", title)

	updater(visibility.State{NavHidden: false})
	title, _, err = btn.Attribute(context.Background(), "title")
	require.NoError(t, err)
	assert.Equal(t, "Hide navigation", title)

	pressed, _, err := btn.Attribute(context.Background(), "aria-pressed")
	require.NoError(t, err)
	assert.Equal(t, "false", pressed)
}

func TestUpdaterSurvivesInjectionContextCancel(t *testing.T) {
	doc := domtest.New(t, dashboardPage, "http://localhost:7443/app/dashboard")
	r := newRegistry(t, doc, Controls{})

	ctx, cancel := context.WithCancel(context.Background())
	updaters := r.InjectAll(ctx)
	require.Len(t, updaters, 4)
	cancel()

	// The injection context is gone; updaters keep working for as long
	// as the store holds them.
	updaters[IDNavToggle](visibility.State{NavHidden: true})

	btn := doc.MustQuery("#" + IDNavToggle)
	title, _, err := btn.Attribute(context.Background(), "title")
	require.NoError(t, err)
	assert.Equal(t, "Show navigation", title)
}
