package main

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/prematch/internal/shared"
	tu "github.com/desertthunder/prematch/internal/testing"
)

func TestNewRunner(t *testing.T) {
	t.Run("keeps the provided dependencies", func(t *testing.T) {
		config := shared.DefaultConfig()
		logger := shared.NewLogger(io.Discard)
		output := &bytes.Buffer{}
		db := tu.NewTestDB(t)

		r := NewRunner(RunnerOpts{Config: config, ConfigPath: "/etc/prematch.toml", Logger: logger, Output: output, DB: db})

		assert.Same(t, config, r.config)
		assert.Same(t, logger, r.logger)
		assert.Equal(t, output, r.output)
		assert.Equal(t, "/etc/prematch.toml", r.configPath)
		require.NotNil(t, r.store)
		assert.Same(t, db, r.store.db)
		assert.False(t, r.store.owned)
	})

	t.Run("fills in defaults", func(t *testing.T) {
		r := NewRunner(RunnerOpts{})

		assert.NotNil(t, r.config)
		assert.NotNil(t, r.logger)
		assert.Equal(t, os.Stdout, r.output)
		assert.NotNil(t, r.registry)
		assert.Nil(t, r.store, "the database is opened lazily")
	})

	t.Run("Close leaves a provided database open", func(t *testing.T) {
		db := tu.NewTestDB(t)
		r := NewRunner(RunnerOpts{DB: db, Logger: shared.NewLogger(io.Discard)})

		require.NoError(t, r.Close())
		assert.NoError(t, db.Ping())
	})

	t.Run("open creates and closes its own database", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Database.Path = t.TempDir() + "/prematch.db"
		r := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard)})

		s, err := r.open()
		require.NoError(t, err)
		assert.True(t, s.owned)

		again, err := r.open()
		require.NoError(t, err)
		assert.Same(t, s, again)

		require.NoError(t, r.Close())
		assert.Nil(t, r.store)
		assert.Error(t, s.db.Ping())
	})

	t.Run("open rejects an in-memory database", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Database.Path = ":memory:"
		r := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard)})

		_, err := r.open()
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)
		assert.Nil(t, r.store)
	})

	t.Run("SetLogger rebuilds the store on the same database", func(t *testing.T) {
		db := tu.NewTestDB(t)
		r := NewRunner(RunnerOpts{DB: db, Logger: shared.NewLogger(io.Discard)})
		before := r.store

		logger := shared.NewLogger(io.Discard)
		r.SetLogger(logger)

		assert.Same(t, logger, r.logger)
		assert.NotSame(t, before, r.store)
		assert.Same(t, db, r.store.db)
	})

	t.Run("metrics register once per registry", func(t *testing.T) {
		db := tu.NewTestDB(t)
		r := NewRunner(RunnerOpts{DB: db, Logger: shared.NewLogger(io.Discard)})
		r.SetLogger(shared.NewLogger(io.Discard))
		r.registerRuntimeCollectors()
		r.registerRuntimeCollectors()

		n, err := testutil.GatherAndCount(r.registry, "go_goroutines")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestWriteHelpers(t *testing.T) {
	data := map[string]string{"key": "value"}

	t.Run("writeJSON", func(t *testing.T) {
		tt := []struct {
			name    string
			pretty  bool
			data    any
			writer  func() io.Writer
			want    string
			wantErr string
		}{
			{name: "pretty", pretty: true, data: data, want: "{\n  \"key\": \"value\"\n}\n"},
			{name: "compact", data: data, want: `{"key":"value"}` + "\n"},
			{name: "unmarshalable value", data: make(chan int), wantErr: "failed to marshal JSON"},
			{name: "failing writer", data: data, writer: func() io.Writer { return &tu.FWriter{} }, wantErr: "failed to write output"},
			{
				name: "failing newline",
				data: data,
				writer: func() io.Writer {
					w := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
					return &w
				},
				wantErr: "failed to write newline",
			},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				buf := &bytes.Buffer{}
				var w io.Writer = buf
				if tc.writer != nil {
					w = tc.writer()
				}
				r := NewRunner(RunnerOpts{Output: w})

				err := r.writeJSON(tc.data, tc.pretty)
				if tc.wantErr != "" {
					assert.ErrorContains(t, err, tc.wantErr)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tc.want, buf.String())
			})
		}
	})

	t.Run("writePlain", func(t *testing.T) {
		buf := &bytes.Buffer{}
		r := NewRunner(RunnerOpts{Output: buf})

		require.NoError(t, r.writePlain("%d changed", 3))
		require.NoError(t, r.writePlainln("done"))
		assert.Equal(t, "3 changed\ndone\n", buf.String())

		failing := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		assert.ErrorContains(t, failing.writePlain("x"), "failed to write output")
	})

	t.Run("writePlainHeader", func(t *testing.T) {
		buf := &bytes.Buffer{}
		NewRunner(RunnerOpts{Output: buf}).writePlainHeader("Runs")
		assert.Contains(t, buf.String(), "\nRuns\n")
	})
}

func TestRegister(t *testing.T) {
	commands := NewRunner(RunnerOpts{}).register()

	var names []string
	for _, cmd := range commands {
		require.NotNil(t, cmd)
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"setup", "predb", "match", "stage", "runs", "serve", "tui"}, names)
}
