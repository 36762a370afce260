package camera

import (
	"strings"
	"testing"

	"github.com/grafana/sobek"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoomProbeScriptCompiles(t *testing.T) {
	src := ZoomProbeScript("[class*='LiveviewTile']", probeMarkerID)
	_, err := sobek.Compile("zoom-probe.js", src, true)
	require.NoError(t, err)

	assert.Contains(t, src, "__reactFiber$")
	assert.Contains(t, src, "data-zoom-index")
	assert.Contains(t, src, probeMarkerID)
}

func TestZoomProbeScriptEscapesSelector(t *testing.T) {
	// A selector with quotes must not break the generated source.
	src := ZoomProbeScript(`[data-name="a'b"]`, probeMarkerID)
	_, err := sobek.Compile("zoom-probe.js", src, true)
	require.NoError(t, err)
}

func TestHotkeyListenerScriptCompiles(t *testing.T) {
	src := HotkeyListenerScript()
	_, err := sobek.Compile("hotkeys.js", src, true)
	require.NoError(t, err)

	assert.Contains(t, src, HotkeyBinding)
	// Installs once per page even if injected again.
	assert.Equal(t, 2, strings.Count(src, "__camdeckHotkeysInstalled"))
}

func TestHotkeyListenerGuardIsIdempotent(t *testing.T) {
	// Run the listener twice in a bare VM with a stub document: the
	// second run must bail out before re-registering.
	vm := sobek.New()
	registrations := 0
	require.NoError(t, vm.Set("document", map[string]any{
		"addEventListener": func(string, sobek.Value, bool) { registrations++ },
	}))
	require.NoError(t, vm.GlobalObject().Set("window", vm.GlobalObject()))

	src := HotkeyListenerScript()
	_, err := vm.RunString(src)
	require.NoError(t, err)
	_, err = vm.RunString(src)
	require.NoError(t, err)

	assert.Equal(t, 1, registrations)
}
