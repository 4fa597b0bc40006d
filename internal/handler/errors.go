package handler

import (
	"errors"
	"fmt"
)

// errBadRequest marks errors the client caused; writeError maps anything
// wrapping it to a 400.
var errBadRequest = errors.New("bad request")

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Is(target error) bool { return target == errBadRequest }

func errorf(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}
