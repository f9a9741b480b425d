package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Configuration & Environment Errors
var (
	ErrConfigMissing = errors.New("configuration missing")
	ErrConfigInvalid = errors.New("configuration invalid")
)

// Data Consistency & Integrity Errors
var (
	ErrPartialFailure = errors.New("partial failure")
)

func NewConfigError(configName string, cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        ErrConfigInvalid,
		Details:    fmt.Sprintf("Invalid configuration: %s", configName),
		Cause:      cause,
		Field:      configName,
	}
}

func NewEnvironmentVariableError(varName string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        ErrConfigMissing,
		Details:    fmt.Sprintf("Environment variable %s is not set", varName),
		Field:      varName,
	}
}

// NewPartialFailureError reports a multi-step write whose compensation did not fully complete.
func NewPartialFailureError(operation string, failedSteps []string, cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        ErrPartialFailure,
		Details:    fmt.Sprintf("Partial failure in %s: failed steps: %s", operation, strings.Join(failedSteps, ", ")),
		Cause:      cause,
	}
}

func IsPartialFailure(err error) bool {
	return errors.Is(err, ErrPartialFailure)
}
