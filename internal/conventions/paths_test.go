package conventions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/modkeeper/internal/conventions"
)

func TestSystemWideNames(t *testing.T) {
	tests := map[string]struct {
		modeID       string
		expLock      string
		expNamespace string
		expEndpoint  string
	}{
		"Skyrim mode should derive its names": {
			modeID:       "skyrim",
			expLock:      "modkeeper-skyrim-GameModeMutex",
			expNamespace: "modkeeper-skyrimIpcServer",
			expEndpoint:  "skyrimListener",
		},
		"Fallout 4 mode should derive its names": {
			modeID:       "fallout4",
			expLock:      "modkeeper-fallout4-GameModeMutex",
			expNamespace: "modkeeper-fallout4IpcServer",
			expEndpoint:  "fallout4Listener",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			assert.Equal(test.expLock, conventions.LockName(conventions.AppName, test.modeID))
			assert.Equal(test.expNamespace, conventions.IPCNamespace(conventions.AppName, test.modeID))
			assert.Equal(test.expEndpoint, conventions.IPCEndpoint(test.modeID))
		})
	}
}

func TestSystemWideNamesAreDistinctPerMode(t *testing.T) {
	modes := []string{"skyrim", "skyrimse", "fallout3", "fallout4", "fallout", "oblivion", "morrowind", "s"}

	locks := map[string]string{}
	namespaces := map[string]string{}
	endpoints := map[string]string{}
	for _, m := range modes {
		lock := conventions.LockName(conventions.AppName, m)
		ns := conventions.IPCNamespace(conventions.AppName, m)
		ep := conventions.IPCEndpoint(m)

		assert.NotContains(t, locks, lock, "lock name for %q collides with %q", m, locks[lock])
		assert.NotContains(t, namespaces, ns, "namespace for %q collides with %q", m, namespaces[ns])
		assert.NotContains(t, endpoints, ep, "endpoint for %q collides with %q", m, endpoints[ep])

		locks[lock] = m
		namespaces[ns] = m
		endpoints[ep] = m
	}
}
