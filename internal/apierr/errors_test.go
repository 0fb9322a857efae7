package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundThroughWrapping(t *testing.T) {
	err := fmt.Errorf("failed to delete task 7: %w", &TransportError{
		Method:     http.MethodDelete,
		URL:        "http://localhost:8080/api/v1/tasks/7",
		StatusCode: http.StatusNotFound,
	})

	assert.True(t, IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestStatusCodeOfOtherErrors(t *testing.T) {
	assert.Equal(t, 0, StatusCode(errors.New("boom")))
	assert.False(t, IsNotFound(&TransportError{StatusCode: http.StatusForbidden}))
}

func TestTransportErrorMessages(t *testing.T) {
	withBody := &TransportError{Method: "GET", URL: "u", StatusCode: 500, Body: "oops"}
	assert.Equal(t, "GET u: HTTP error 500: oops", withBody.Error())

	cause := errors.New("connection refused")
	failed := &TransportError{Method: "GET", URL: "u", Err: cause}
	assert.ErrorIs(t, failed, cause)
	assert.Contains(t, failed.Error(), "connection refused")
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "resource type", Value: "ftp", Reason: "expected local, share or remote"}
	assert.Equal(t, `invalid resource type "ftp": expected local, share or remote`, err.Error())

	var ve *ValidationError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &ve))
}
