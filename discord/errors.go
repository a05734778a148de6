package discord

import (
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

//Failure kinds for calls against the discord API. Use errors.Is to test for them.
var (
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrRateLimited = errors.New("rate limited")
	ErrTransient   = errors.New("transient error")
)

//APIError is returned by every EventSource call which reaches the discord API and fails
type APIError struct {
	Op   string
	Kind error
	Err  error
}

func (e *APIError) Error() string {
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

//Unwrap returns the underlying discordgo error
func (e *APIError) Unwrap() error {
	return e.Err
}

//Is reports whether target is this error's kind
func (e *APIError) Is(target error) bool {
	return target == e.Kind
}

//classify wraps a discordgo error with one of the failure kinds. It returns nil for a nil error.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{Op: op, Kind: kindOf(err), Err: err}
}

func kindOf(err error) error {
	var rateLimited *discordgo.RateLimitError
	if errors.As(err, &rateLimited) {
		return ErrRateLimited
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return ErrTransient
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownRole, discordgo.ErrCodeUnknownGuild,
			discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownUser, discordgo.ErrCodeUnknownEmoji:
			return ErrNotFound
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return ErrForbidden
		}
	}
	if restErr.Response == nil {
		return ErrTransient
	}
	switch restErr.Response.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		return ErrForbidden
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrTransient
	}
}
