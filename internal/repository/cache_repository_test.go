package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
)

func TestCacheRepositoryDisabledIsMissAndNoop(t *testing.T) {
	repo := NewCacheRepository(nil, "contribmint:")
	ctx := context.Background()

	var dest []string
	assert.ErrorIs(t, repo.Get(ctx, "leaderboard:proj-1", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "leaderboard:proj-1", []string{"alice"}, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "leaderboard:proj-1"))
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}
