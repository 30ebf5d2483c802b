package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cinecritic/internal/services"
	"cinecritic/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

func writeError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		// Let the error middleware log it; the client gets a generic message.
		_ = c.Error(err)
		c.JSON(status, httpdto.NewErrorResponse("internal error", httpdto.CodeForStatus(status)))
		return
	}
	c.JSON(status, httpdto.NewErrorResponse(err.Error(), httpdto.CodeForStatus(status)))
}

// writeBindError reports a failed ShouldBindJSON. Field validation failures
// are listed by field so clients can show them next to inputs.
func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", httpdto.CodeInvalidRequest))
		return
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(strings.Join(msgs, "; "), httpdto.CodeInvalidRequest))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}
