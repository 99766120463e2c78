package guard

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookden/internal/auth/session"
	"bookden/pkg/domainerrors"
)

type fakeSession struct {
	state        session.State
	initialized  atomic.Int32
	restoreCalls atomic.Int32
	onRestore    func(*fakeSession)
}

func (f *fakeSession) Snapshot() session.State { return f.state }

func (f *fakeSession) SetAPIInitialized() {
	f.initialized.Add(1)
	f.state.APIInitialized = true
}

func (f *fakeSession) Restore(ctx context.Context) {
	f.restoreCalls.Add(1)
	if f.onRestore != nil {
		f.onRestore(f)
	}
}

func TestDecideNeverRedirectsBeforeAPIInitialized(t *testing.T) {
	// Cold boot: nothing initialized, nothing authenticated. The defective
	// pattern would redirect here; the gate must hold at loading.
	gate := New(&fakeSession{state: session.State{APIInitialized: false, Authenticated: false}})
	assert.Equal(t, DecisionLoading, gate.Decide())
}

func TestDecideHoldsWhileLoading(t *testing.T) {
	gate := New(&fakeSession{state: session.State{APIInitialized: true, Loading: true}})
	assert.Equal(t, DecisionLoading, gate.Decide())
}

func TestDecideAfterRestore(t *testing.T) {
	tests := []struct {
		name          string
		authenticated bool
		want          Decision
	}{
		{"restored session renders", true, DecisionAuthenticated},
		{"absent session redirects", false, DecisionUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := New(&fakeSession{state: session.State{
				APIInitialized: true,
				Authenticated:  tt.authenticated,
			}})
			assert.Equal(t, tt.want, gate.Decide())
		})
	}
}

func TestBootRunsOnceInOrder(t *testing.T) {
	fs := &fakeSession{}
	fs.onRestore = func(f *fakeSession) {
		// Initialization must precede restoration.
		assert.Equal(t, int32(1), f.initialized.Load())
	}
	gate := New(fs)

	gate.Boot(context.Background())
	gate.Boot(context.Background())

	assert.Equal(t, int32(1), fs.initialized.Load())
	assert.Equal(t, int32(1), fs.restoreCalls.Load())
}

func TestRequire(t *testing.T) {
	t.Run("authenticated passes", func(t *testing.T) {
		fs := &fakeSession{}
		fs.onRestore = func(f *fakeSession) { f.state.Authenticated = true }
		gate := New(fs)
		require.NoError(t, gate.Require(context.Background()))
	})

	t.Run("unauthenticated fails with session error", func(t *testing.T) {
		gate := New(&fakeSession{})
		err := gate.Require(context.Background())
		require.Error(t, err)
		assert.True(t, domainerrors.Is(err, domainerrors.CodeSessionInvalid))
	})
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "loading", DecisionLoading.String())
	assert.Equal(t, "authenticated", DecisionAuthenticated.String())
	assert.Equal(t, "unauthenticated", DecisionUnauthenticated.String())
}
