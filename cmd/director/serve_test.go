package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KirkDiggler/pcg-director/internal/repositories/history"
	"github.com/KirkDiggler/pcg-director/internal/services/director"
	"github.com/KirkDiggler/pcg-director/internal/testutils"
)

func TestBuildDirector(t *testing.T) {
	d, err := buildDirector(serveOptions{}, "")
	require.NoError(t, err)
	assert.IsType(t, &director.RuleDirector{}, d)

	d, err = buildDirector(serveOptions{llmModel: "gpt-4o-mini"}, "sk-test")
	require.NoError(t, err)
	assert.IsType(t, &director.LLMDirector{}, d)

	_, err = buildDirector(serveOptions{llmBaseURL: "::bad"}, "sk-test")
	assert.Error(t, err)
}

func TestBuildHistory(t *testing.T) {
	ctx := context.Background()

	repo, cleanup, err := buildHistory(ctx, serveOptions{})
	require.NoError(t, err)
	cleanup()
	assert.IsType(t, &history.InMemoryRepository{}, repo)

	_, mr := testutils.CreateTestRedisClient(t)
	repo, cleanup, err = buildHistory(ctx, serveOptions{redisAddr: mr.Addr()})
	require.NoError(t, err)
	defer cleanup()

	_, err = repo.Append(ctx, &history.AppendInput{PlayerID: "p1", Answer: "{}"})
	require.NoError(t, err)
	assert.True(t, mr.Exists("director:history:p1"))
}
