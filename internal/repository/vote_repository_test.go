package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contribmint/contribmint-api/internal/models"
)

func promoteAtTwo(current models.MintStatus, tally models.VoteTally) (models.MintStatus, error) {
	if current == models.MintStatusAwaitingVotes && tally.Count >= 2 {
		return models.MintStatusMintEligible, nil
	}
	return current, nil
}

func TestVoteRepositoryCastAndTallyTransitions(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT mint_status FROM contribution_events WHERE id = \\$1 FOR UPDATE").
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"mint_status"}).AddRow("AWAITING_VOTES"))
	mock.ExpectExec("INSERT INTO votes .* ON CONFLICT \\(contribution_event_id, user_id\\)\\s+DO UPDATE SET score = EXCLUDED.score").
		WithArgs(sqlmock.AnyArg(), "e1", "user-b", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) AS vote_count, COALESCE\\(SUM\\(score\\), 0\\) AS score_sum FROM votes").
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"vote_count", "score_sum"}).AddRow(2, 7))
	mock.ExpectExec("UPDATE contribution_events SET mint_status = \\$1, updated_at = \\$2 WHERE id = \\$3").
		WithArgs("MINT_ELIGIBLE", sqlmock.AnyArg(), "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	vote := &models.Vote{ContributionEventID: "e1", UserID: "user-b", Score: 2}
	outcome, err := repo.CastAndTally(context.Background(), vote, promoteAtTwo)
	require.NoError(t, err)
	assert.NotEmpty(t, vote.ID)
	assert.Equal(t, models.VoteTally{Count: 2, Sum: 7}, outcome.Tally)
	assert.Equal(t, models.MintStatusAwaitingVotes, outcome.PreviousStatus)
	assert.Equal(t, models.MintStatusMintEligible, outcome.Status)
}

func TestVoteRepositoryCastAndTallySkipsUnchangedStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"mint_status"}).AddRow("AWAITING_VOTES"))
	mock.ExpectExec("INSERT INTO votes").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"vote_count", "score_sum"}).AddRow(1, 5))
	mock.ExpectCommit()

	outcome, err := repo.CastAndTally(context.Background(), &models.Vote{ContributionEventID: "e1", UserID: "user-a", Score: 5}, promoteAtTwo)
	require.NoError(t, err)
	assert.Equal(t, models.MintStatusAwaitingVotes, outcome.Status)
}

func TestVoteRepositoryCastAndTallyUnknownEvent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("missing").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.CastAndTally(context.Background(), &models.Vote{ContributionEventID: "missing", UserID: "u", Score: 3}, promoteAtTwo)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestVoteRepositoryCastAndTallyRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"mint_status"}).AddRow("AWAITING_VOTES"))
	mock.ExpectExec("INSERT INTO votes").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.CastAndTally(context.Background(), &models.Vote{ContributionEventID: "e1", UserID: "u", Score: 3}, promoteAtTwo)
	assert.ErrorContains(t, err, "upsert vote")
}

func TestVoteRepositoryListByEvent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	mock.ExpectQuery("SELECT id, contribution_event_id, user_id, score").
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "contribution_event_id", "user_id", "score", "created_at", "updated_at"}).
			AddRow("v1", "e1", "user-a", 5, time.Now(), time.Now()))

	votes, err := repo.ListByEvent(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, 5, votes[0].Score)
}
