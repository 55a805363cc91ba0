package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/gatherly/gatherly/apperr"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:     http.StatusBadRequest,
	apperr.KindAuthentication: http.StatusUnauthorized,
	apperr.KindAuthorization:  http.StatusForbidden,
	apperr.KindNotFound:       http.StatusNotFound,
	apperr.KindConflict:       http.StatusBadRequest,
	apperr.KindCapacity:       http.StatusBadRequest,
	apperr.KindDependency:     http.StatusBadGateway,
}

func respondError(ctx *gin.Context, err error) {
	kind := apperr.KindOf(err)

	status, ok := statusByKind[kind]
	if !ok {
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg("unhandled error")
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg("dependency failure")
	}

	ctx.JSON(status, gin.H{"message": err.Error()})
}
