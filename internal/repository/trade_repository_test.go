package repository_test

import (
	"context"
	"testing"
	"time"

	"teamtasks/internal/apperr"
	"teamtasks/internal/model"
	"teamtasks/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

var tradeColumns = []string{"id", "id_team", "id_task_list", "id_task_requested", "id_user_sender", "id_user_receiver",
	"trade_type", "task_offered", "score_offered", "status", "created_at", "resolved_at"}

func tradeRows(status model.TradeStatus) *sqlmock.Rows {
	return sqlmock.NewRows(tradeColumns).
		AddRow("tr1", "team1", "list1", "t1", "sender", "receiver", string(model.TradeScore), "", 5, string(status), time.Now(), nil)
}

func TestTradeRepository_Reject_OnlyReceiver(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	repo := repository.NewTradeRepository(nopLogger(), gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "trades" WHERE id = .* FOR UPDATE`).WillReturnRows(tradeRows(model.TradePending))
	mock.ExpectRollback()

	// Act
	trade, err := repo.Reject(context.Background(), "tr1", "sender")

	// Assert
	assert.ErrorIs(t, err, apperr.ErrNotTradeReceiver)
	assert.Nil(t, trade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeRepository_Accept_AlreadyResolved(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	repo := repository.NewTradeRepository(nopLogger(), gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "trades" WHERE id = .* FOR UPDATE`).WillReturnRows(tradeRows(model.TradeRejected))
	mock.ExpectRollback()

	// Act
	_, err := repo.Accept(context.Background(), "tr1", "receiver")

	// Assert
	assert.ErrorIs(t, err, apperr.ErrTradeAlreadyResolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeRepository_Accept_RequestedTaskCompletedMeanwhile(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	repo := repository.NewTradeRepository(nopLogger(), gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "trades" WHERE id = .* FOR UPDATE`).WillReturnRows(tradeRows(model.TradePending))
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id IN .* FOR UPDATE`).
		WillReturnRows(taskRow(sqlmock.NewRows(taskColumns), "t1", "receiver", false, true))
	mock.ExpectRollback()

	// Act
	_, err := repo.Accept(context.Background(), "tr1", "receiver")

	// Assert
	assert.ErrorIs(t, err, apperr.ErrTaskRequestedIsAlreadyCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeRepository_Accept_ScoreNoLongerCovered(t *testing.T) {
	// Arrange
	gormDB, mock := setupMockDB(t)
	repo := repository.NewTradeRepository(nopLogger(), gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "trades" WHERE id = .* FOR UPDATE`).WillReturnRows(tradeRows(model.TradePending))
	mock.ExpectQuery(`SELECT .* FROM "tasks" WHERE id IN .* FOR UPDATE`).
		WillReturnRows(taskRow(sqlmock.NewRows(taskColumns), "t1", "receiver", false, false))
	mock.ExpectExec(`UPDATE "task_list_members" SET "score"=score - `).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	// Act
	_, err := repo.Accept(context.Background(), "tr1", "receiver")

	// Assert
	assert.ErrorIs(t, err, apperr.ErrSenderUserDoesNotHaveEnoughScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeRepository_Delete(t *testing.T) {
	t.Run("pending trade needs confirmation", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := repository.NewTradeRepository(nopLogger(), gormDB)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .* FROM "trades" WHERE id = .* FOR UPDATE`).WillReturnRows(tradeRows(model.TradePending))
		mock.ExpectRollback()

		_, err := repo.Delete(context.Background(), "tr1", "sender", false)

		assert.ErrorIs(t, err, apperr.ErrConfirmationRequired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("outsider", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := repository.NewTradeRepository(nopLogger(), gormDB)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .* FROM "trades" WHERE id = .* FOR UPDATE`).WillReturnRows(tradeRows(model.TradeAccepted))
		mock.ExpectRollback()

		_, err := repo.Delete(context.Background(), "tr1", "someone", true)

		assert.ErrorIs(t, err, apperr.ErrNotTradeParticipant)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("confirmed pending trade releases its tasks", func(t *testing.T) {
		gormDB, mock := setupMockDB(t)
		repo := repository.NewTradeRepository(nopLogger(), gormDB)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .* FROM "trades" WHERE id = .* FOR UPDATE`).WillReturnRows(tradeRows(model.TradePending))
		mock.ExpectExec(`UPDATE "tasks" SET .*"is_involved_in_trade"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM "trades"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		trade, err := repo.Delete(context.Background(), "tr1", "receiver", true)

		assert.NoError(t, err)
		assert.Equal(t, "tr1", trade.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTradeRepository_GetByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewTradeRepository(nopLogger(), gormDB)

	mock.ExpectQuery(`SELECT .* FROM "trades" WHERE id = `).WillReturnRows(sqlmock.NewRows(tradeColumns))

	_, err := repo.GetByID(context.Background(), "nope")

	assert.ErrorIs(t, err, apperr.ErrTradeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
