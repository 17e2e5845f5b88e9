package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dm-service/internal/apperr"
)

func writeError(c *gin.Context, log *slog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("http.request.fail", "path", c.FullPath(), "request_id", requestID(c), "err", err)
	}
	c.JSON(status, gin.H{"error": apperr.Message(err), "kind": string(apperr.KindOf(err))})
}

func intParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name, "kind": string(apperr.KindValidation)})
		return 0, false
	}
	return id, true
}

func messageIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id", "kind": string(apperr.KindValidation)})
		return 0, false
	}
	return id, true
}
