package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamtasks/internal/handler/apierr"
	"teamtasks/internal/middleware"
)

// currentUser returns the authenticated user id, answering 401 when there is none.
func currentUser(c *gin.Context) (string, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		apierr.WriteApiErrJSON(c, http.StatusUnauthorized, apierr.Unauthorized)
	}
	return id, ok
}

func badRequest(c *gin.Context, logger *zap.SugaredLogger, err error) {
	apierr.WriteApiErrJSON(c, http.StatusBadRequest, apierr.BadRequest)
	logger.Warnw("error parsing request", "path", c.FullPath(), "error", err)
}

func respondError(c *gin.Context, logger *zap.SugaredLogger, op string, err error) {
	if apierr.Handle(c, err) {
		logger.Warnw("mapped error", "op", op, "error", err)
		return
	}

	logger.Errorw(op+" failed, couldnt map the error", "err", err)
	apierr.WriteApiErrJSON(c, http.StatusInternalServerError, apierr.InternalServerError)
}
