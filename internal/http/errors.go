package http

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"task-service/internal/domain"
)

// validationError marks request binding failures.
type validationError struct {
	err error
}

func (e validationError) Error() string { return e.err.Error() }

func (e validationError) Unwrap() error { return e.err }

var registerFieldNames sync.Once

// useRequestFieldNames makes validator report fields by their json or form name.
func useRequestFieldNames() {
	registerFieldNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, key := range []string{"json", "form"} {
				name, _, _ := strings.Cut(field.Tag.Get(key), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return field.Name
		})
	})
}

// validationDetail renders field failures as "field: rule" pairs. Anything
// else (malformed JSON, unparsable numbers) is reported generically.
func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "invalid request"
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fe.Field()+": "+rule)
	}
	return strings.Join(parts, "; ")
}

var errorStatuses = []struct {
	err    error
	status int
	detail string
}{
	{domain.ErrUserAlreadyExists, http.StatusConflict, "User already exists"},
	{domain.ErrIncorrectEmailOrPassword, http.StatusUnauthorized, "Incorrect email or password"},
	{domain.ErrTokenExpired, http.StatusUnauthorized, "Token expired"},
	{domain.ErrTokenAbsent, http.StatusUnauthorized, "Token absent"},
	{domain.ErrIncorrectTokenFormat, http.StatusUnauthorized, "Incorrect token format"},
	{domain.ErrUserNotPresent, http.StatusUnauthorized, "User is not present"},
	{domain.ErrTaskNotFound, http.StatusConflict, "Task not found"},
	{domain.ErrTaskUpdateNotAllowed, http.StatusConflict, "You can not update task"},
}

// writeError renders err as {"detail": ...}. Unknown errors are logged and
// reported as a bare 500.
func (h *Handler) writeError(c *gin.Context, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"detail": e.detail})
			return
		}
	}

	var verr validationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": validationDetail(verr.err)})
	case errors.Is(err, domain.ErrInvalidTaskStatus):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
	default:
		h.logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
	}
}
