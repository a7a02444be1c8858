package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspiro/internal/config"
	"inspiro/internal/embed"
	"inspiro/internal/events"
	"inspiro/internal/store/jsonfile"
	"inspiro/internal/store/sqlitevec"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	c := config.Default()
	dir := t.TempDir()
	c.Models.Dir = filepath.Join(dir, "models")
	c.Embedder.Provider = "hash"
	c.Emotion.Provider = "none"
	c.Scheduler.Path = filepath.Join(dir, "posts.json")
	c.Storage.DBPath = filepath.Join(dir, "inspiro.db")
	return c
}

func TestStoreSelection(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	rt := &runtime{}
	defer rt.Close()

	st, err := rt.store(ctx, c)
	require.NoError(t, err)
	assert.IsType(t, &jsonfile.Store{}, st)

	c.Scheduler.Store = "sqlite"
	st, err = rt.store(ctx, c)
	require.NoError(t, err)
	assert.IsType(t, &sqlitevec.DB{}, st)

	c.Scheduler.Store = "redis"
	_, err = rt.store(ctx, c)
	assert.ErrorContains(t, err, "unknown scheduler store")
}

func TestEmbedderSelection(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	rt := &runtime{}
	defer rt.Close()

	e, err := rt.embedder(ctx, c)
	require.NoError(t, err)
	assert.IsType(t, &embed.Hash{}, e)

	c.Embedder.Cache.Provider = "memory"
	e, err = rt.embedder(ctx, c)
	require.NoError(t, err)
	cached, ok := e.(*embed.Cached)
	require.True(t, ok)
	assert.Equal(t, c.Embedder.Dim, cached.Dim())

	c.Embedder.Provider = "http"
	_, err = rt.embedder(ctx, c)
	assert.ErrorContains(t, err, "endpoint is required")

	c.Embedder.Provider = "word2vec"
	_, err = rt.embedder(ctx, c)
	assert.ErrorContains(t, err, "unknown embedder provider")
}

func TestPredictorWithoutModelsIsNotReady(t *testing.T) {
	rt := &runtime{}
	defer rt.Close()
	pred := rt.predictor(context.Background(), testConfig(t))
	assert.Error(t, pred.Ready())
	assert.Equal(t, "fallback", pred.Emotion(context.Background(), "hello").Status)
}

func TestSchedulerWithoutCredentials(t *testing.T) {
	t.Setenv("FACEBOOK_TOKEN", "")
	t.Setenv("FACEBOOK_PAGE_ID", "")
	rt := &runtime{}
	defer rt.Close()
	c := testConfig(t)
	assert.Equal(t, events.Nop{}, rt.notifier(c))

	svc, fb, err := rt.scheduler(context.Background(), c)
	require.NoError(t, err)
	assert.NotNil(t, svc)
	assert.Nil(t, fb)
}

func TestRewriteCommandIsSeeded(t *testing.T) {
	run := func() string {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"),
			"rewrite", "--seed", "7", "Check out this AMAZING offer!!! Click here"})
		require.NoError(t, rootCmd.Execute())
		return out.String()
	}
	first := run()
	assert.Contains(t, first, "Fakeness:")
	assert.Equal(t, first, run())
}
