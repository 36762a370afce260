package domtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmuller/camdeck/internal/dom"
)

const page = `<html><body>
<nav class="AppNav">menu</nav>
<header class="AppHeader"><div class="Loader"></div><div class="Tools"></div></header>
</body></html>`

func TestQueryIdentityIsStable(t *testing.T) {
	d := New(t, page, "/app/devices")

	a := d.MustQuery("nav")
	b := d.MustQuery("nav")
	assert.Equal(t, a.ID(), b.ID())
}

func TestRemountChangesIdentity(t *testing.T) {
	d := New(t, page, "/app/devices")

	before := d.MustQuery("nav")
	d.Remount("nav", `<nav class="AppNav">menu v2</nav>`)
	after := d.MustQuery("nav")

	assert.NotEqual(t, before.ID(), after.ID())
}

func TestStyleRoundTrip(t *testing.T) {
	d := New(t, page, "/app/devices")
	ctx := context.Background()

	nav := d.MustQuery("nav")
	require.NoError(t, nav.SetStyle(ctx, "display", "none"))

	got, err := nav.Style(ctx, "display")
	require.NoError(t, err)
	assert.Equal(t, "none", got)

	// Other properties survive a second write.
	require.NoError(t, nav.SetStyle(ctx, "opacity", "0.5"))
	require.NoError(t, nav.SetStyle(ctx, "display", "flex"))
	got, err = nav.Style(ctx, "opacity")
	require.NoError(t, err)
	assert.Equal(t, "0.5", got)
}

func TestNodeWatchFiresOnAttributeMutation(t *testing.T) {
	d := New(t, page, "/app/devices")
	ctx := context.Background()

	nav := d.MustQuery("nav")
	var got []dom.Mutation
	w, err := d.ObserveNode(ctx, nav, func(m dom.Mutation) { got = append(got, m) })
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, nav.SetStyle(ctx, "display", "none"))
	require.Len(t, got, 1)
	assert.Equal(t, dom.MutationAttributes, got[0].Kind)
	assert.Equal(t, nav.ID(), got[0].Target)
}

func TestDetachedElementErrors(t *testing.T) {
	d := New(t, page, "/app/devices")
	ctx := context.Background()

	nav := d.MustQuery("nav")
	require.NoError(t, nav.Remove(ctx))

	err := nav.SetStyle(ctx, "display", "none")
	assert.ErrorIs(t, err, dom.ErrDetached)
}

func TestInsertHTMLRunsScriptHook(t *testing.T) {
	d := New(t, page, "/app/devices")
	ctx := context.Background()

	var ran string
	d.ScriptFunc = func(s string) { ran = s }

	body := d.MustQuery("body")
	el, err := d.InsertHTML(ctx, body, dom.InsertAppend, `<script>probe()</script>`)
	require.NoError(t, err)
	assert.Equal(t, "probe()", ran)
	require.NoError(t, el.Remove(ctx))
}
