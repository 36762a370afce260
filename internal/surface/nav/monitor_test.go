package nav

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmuller/camdeck/internal/dom/domtest"
)

const testPage = `<html><body><div id="root"><main>devices</main></div></body></html>`

type navRecorder struct {
	mu          sync.Mutex
	transitions [][2]string
	initCalls   int
	initErrs    []error
	dashStates  []bool
	loginResets int
}

func (r *navRecorder) hooks() Hooks {
	return Hooks{
		HandleTransition: func(_ context.Context, old, new string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.transitions = append(r.transitions, [2]string{old, new})
		},
		InitDashboard: func(context.Context) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.initCalls++
			if len(r.initErrs) > 0 {
				err := r.initErrs[0]
				r.initErrs = r.initErrs[1:]
				return err
			}
			return nil
		},
		PushDashboardState: func(on bool) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.dashStates = append(r.dashStates, on)
		},
		ResetLoginAttempts: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.loginResets++
		},
	}
}

func (r *navRecorder) snapshot() ([][2]string, int, []bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]string(nil), r.transitions...), r.initCalls,
		append([]bool(nil), r.dashStates...), r.loginResets
}

func newMonitor(t *testing.T, rec *navRecorder, retryDelay time.Duration) (*Monitor, *domtest.Document) {
	t.Helper()
	doc := domtest.New(t, testPage, "http://localhost:7443/app/devices")
	m := New(doc, "/app", "/app/dashboard", retryDelay, rec.hooks(), zerolog.Nop())
	return m, doc
}

func TestSetupIsIdempotent(t *testing.T) {
	rec := &navRecorder{}
	m, doc := newMonitor(t, rec, time.Millisecond)

	td1, err := m.Setup(context.Background())
	require.NoError(t, err)
	defer td1()

	td2, err := m.Setup(context.Background())
	require.NoError(t, err)

	// The second teardown is a no-op: observation survives it.
	td2()
	doc.Navigate("http://localhost:7443/app/settings")

	transitions, _, _, _ := rec.snapshot()
	require.Len(t, transitions, 1)
	assert.Equal(t, "http://localhost:7443/app/settings", transitions[0][1])
}

func TestDashboardTransitionRunsInitAndResetsLogin(t *testing.T) {
	rec := &navRecorder{}
	m, doc := newMonitor(t, rec, time.Millisecond)

	td, err := m.Setup(context.Background())
	require.NoError(t, err)
	defer td()

	doc.Navigate("http://localhost:7443/app/dashboard")

	assert.Eventually(t, func() bool {
		transitions, inits, _, resets := rec.snapshot()
		return len(transitions) == 1 && inits == 1 && resets == 1
	}, time.Second, 2*time.Millisecond)

	transitions, _, dash, _ := rec.snapshot()
	assert.Equal(t, [2]string{
		"http://localhost:7443/app/devices",
		"http://localhost:7443/app/dashboard",
	}, transitions[0])
	require.NotEmpty(t, dash)
	assert.True(t, dash[len(dash)-1])
}

func TestDashboardInitRetriesExactlyOnce(t *testing.T) {
	rec := &navRecorder{initErrs: []error{errors.New("grid not ready")}}
	m, doc := newMonitor(t, rec, 5*time.Millisecond)

	td, err := m.Setup(context.Background())
	require.NoError(t, err)
	defer td()

	doc.Navigate("http://localhost:7443/app/dashboard")

	assert.Eventually(t, func() bool {
		_, inits, _, _ := rec.snapshot()
		return inits == 2
	}, time.Second, 2*time.Millisecond)

	// No third attempt even when the retry also failed elsewhere.
	time.Sleep(25 * time.Millisecond)
	transitions, inits, _, _ := rec.snapshot()
	assert.Equal(t, 2, inits)
	assert.Len(t, transitions, 1)
}

func TestDashboardInitGivesUpAfterRetry(t *testing.T) {
	rec := &navRecorder{initErrs: []error{
		errors.New("grid not ready"),
		errors.New("still not ready"),
	}}
	m, doc := newMonitor(t, rec, time.Millisecond)

	td, err := m.Setup(context.Background())
	require.NoError(t, err)
	defer td()

	doc.Navigate("http://localhost:7443/app/dashboard")

	assert.Eventually(t, func() bool {
		_, inits, _, _ := rec.snapshot()
		return inits == 2
	}, time.Second, 2*time.Millisecond)

	time.Sleep(25 * time.Millisecond)
	_, inits, _, _ := rec.snapshot()
	assert.Equal(t, 2, inits)
}

func TestRepeatedAddressIsIgnored(t *testing.T) {
	rec := &navRecorder{}
	m, doc := newMonitor(t, rec, time.Millisecond)

	td, err := m.Setup(context.Background())
	require.NoError(t, err)
	defer td()

	doc.Navigate("http://localhost:7443/app/settings")
	doc.Navigate("http://localhost:7443/app/settings")

	transitions, _, _, _ := rec.snapshot()
	assert.Len(t, transitions, 1)
}

func TestTreeMutationDetectsSilentAddressChange(t *testing.T) {
	rec := &navRecorder{}
	m, doc := newMonitor(t, rec, time.Millisecond)

	td, err := m.Setup(context.Background())
	require.NoError(t, err)
	defer td()

	// The router rewrote the address without a history event; the next
	// structural mutation surfaces it.
	doc.Remount("main", `<main>settings</main>`)

	transitions, _, _, _ := rec.snapshot()
	require.Empty(t, transitions)

	doc.SilentNavigate("http://localhost:7443/app/settings")
	doc.Remount("main", `<main>reloaded</main>`)

	transitions, _, _, _ = rec.snapshot()
	require.Len(t, transitions, 1)
	assert.Equal(t, "http://localhost:7443/app/settings", transitions[0][1])
}

func TestExternalPageSkipsTransitionHandling(t *testing.T) {
	rec := &navRecorder{}
	m, doc := newMonitor(t, rec, time.Millisecond)

	td, err := m.Setup(context.Background())
	require.NoError(t, err)
	defer td()

	doc.Navigate("http://localhost:7443/login")

	transitions, inits, dash, _ := rec.snapshot()
	assert.Empty(t, transitions)
	assert.Zero(t, inits)
	require.Len(t, dash, 1)
	assert.False(t, dash[0])
}

func TestTeardownStopsObservation(t *testing.T) {
	rec := &navRecorder{}
	m, doc := newMonitor(t, rec, time.Millisecond)

	td, err := m.Setup(context.Background())
	require.NoError(t, err)
	td()

	doc.Navigate("http://localhost:7443/app/dashboard")

	transitions, inits, _, _ := rec.snapshot()
	assert.Empty(t, transitions)
	assert.Zero(t, inits)

	// A fresh Setup observes again.
	td2, err := m.Setup(context.Background())
	require.NoError(t, err)
	defer td2()

	doc.Navigate("http://localhost:7443/app/settings")
	transitions, _, _, _ = rec.snapshot()
	assert.Len(t, transitions, 1)
}

func TestClassify(t *testing.T) {
	m := New(nil, "/app", "/app/dashboard", 0, Hooks{}, zerolog.Nop())

	cases := []struct {
		address string
		want    Classification
	}{
		{"http://localhost:7443/app/dashboard", PageDashboard},
		{"http://localhost:7443/app/dashboard/fullscreen", PageDashboard},
		{"http://localhost:7443/app/devices", PageApp},
		{"http://localhost:7443/app", PageApp},
		{"http://localhost:7443/login", PageExternal},
		{"http://localhost:7443/", PageExternal},
		{"/app/dashboard", PageDashboard},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, m.Classify(tc.address), tc.address)
	}
}
