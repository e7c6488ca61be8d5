package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/tuntasinaja/tuntasinaja/pkg/errors"
	"github.com/tuntasinaja/tuntasinaja/pkg/response"
	appValidator "github.com/tuntasinaja/tuntasinaja/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	return validate(c, dest)
}

// bindOptionalJSON is bindAndValidate for endpoints whose body may be omitted.
func bindOptionalJSON[T any](c *gin.Context, dest *T) bool {
	if c.Request == nil || c.Request.Body == nil || c.Request.ContentLength == 0 {
		return validate(c, dest)
	}
	return bindAndValidate(c, dest)
}

func validate[T any](c *gin.Context, dest *T) bool {
	err := appValidator.ValidateStruct(dest)
	if err == nil {
		return true
	}

	message := "invalid request payload"
	var failures appValidator.ValidationErrors
	if errors.As(err, &failures) {
		message = failures.Error()
	}
	response.Error(c, appErrors.NewBadRequest(message))
	return false
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
