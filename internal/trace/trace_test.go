package trace_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/modkeeper/internal/trace"
)

func TestFile(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC) }

	tests := map[string]struct {
		keep    bool
		log     func(l *logrus.Logger)
		fail    bool
		expKept bool
	}{
		"A successful run should remove the trace": {
			log:     func(l *logrus.Logger) { l.Info("all good") },
			expKept: false,
		},
		"A kept trace should stay": {
			keep:    true,
			log:     func(l *logrus.Logger) { l.Info("all good") },
			expKept: true,
		},
		"A logged error should keep the trace": {
			log:     func(l *logrus.Logger) { l.Error("could not start services") },
			expKept: true,
		},
		"A run marked as failed should keep the trace": {
			log:     func(l *logrus.Logger) { l.Debug("debug") },
			fail:    true,
			expKept: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			dir := filepath.Join(t.TempDir(), "traces")
			f, err := trace.NewFile(trace.FileConfig{Dir: dir, Keep: test.keep, Now: now})
			require.NoError(err)
			assert.Equal(filepath.Join(dir, "20261019-083000.log"), f.Path())

			l := logrus.New()
			l.SetOutput(io.Discard)
			l.SetLevel(logrus.InfoLevel)
			l.AddHook(f)
			test.log(l)
			if test.fail {
				f.MarkFailed()
			}

			kept, err := f.Close()
			require.NoError(err)
			assert.Equal(test.expKept, kept)

			_, err = os.Stat(f.Path())
			if test.expKept {
				assert.NoError(err)
			} else {
				assert.ErrorIs(err, os.ErrNotExist)
			}
		})
	}
}

func TestFileRecordsEveryLevel(t *testing.T) {
	require := require.New(t)

	f, err := trace.NewFile(trace.FileConfig{Dir: t.TempDir(), Keep: true})
	require.NoError(err)

	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.DebugLevel)
	l.AddHook(f)
	l.WithField("svc", "pipeline.Pipeline").Debug("stage started")
	_, err = f.Close()
	require.NoError(err)

	b, err := os.ReadFile(f.Path())
	require.NoError(err)
	assert.Contains(t, string(b), "stage started")
	assert.Contains(t, string(b), "svc=pipeline.Pipeline")
}
