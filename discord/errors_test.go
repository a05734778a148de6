package discord

import (
	"context"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func restError(status int, code int) error {
	restErr := &discordgo.RESTError{
		Response: &http.Response{StatusCode: status, Status: http.StatusText(status)},
	}
	if code != 0 {
		restErr.Message = &discordgo.APIErrorMessage{Code: code}
	}
	return restErr
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		kind error
	}{
		{"unknown member", restError(http.StatusNotFound, discordgo.ErrCodeUnknownMember), ErrNotFound},
		{"unknown role with odd status", restError(http.StatusBadRequest, discordgo.ErrCodeUnknownRole), ErrNotFound},
		{"bare 404", restError(http.StatusNotFound, 0), ErrNotFound},
		{"missing permissions", restError(http.StatusForbidden, discordgo.ErrCodeMissingPermissions), ErrForbidden},
		{"bare 403", restError(http.StatusForbidden, 0), ErrForbidden},
		{"429", restError(http.StatusTooManyRequests, 0), ErrRateLimited},
		{"rate limit error", &discordgo.RateLimitError{RateLimit: &discordgo.RateLimit{URL: "x"}}, ErrRateLimited},
		{"server error", restError(http.StatusBadGateway, 0), ErrTransient},
		{"timeout", errors.Wrap(context.DeadlineExceeded, "Get"), ErrTransient},
		{"plain error", errors.New("connection reset"), ErrTransient},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify("op", tc.err)
			assert.True(t, errors.Is(err, tc.kind), "expected %v to be %v", err, tc.kind)
			assert.True(t, errors.Is(err, tc.err) || errors.Unwrap(err) == tc.err)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, classify("op", nil))
}

func TestAPIErrorMessage(t *testing.T) {
	err := classify("grant role", errors.New("boom"))
	assert.Equal(t, "grant role: transient error: boom", err.Error())
}
