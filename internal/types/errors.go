package types

import "errors"

var (
	ErrNoTarget           = errors.New("no target selected")
	ErrDispatchSuperseded = errors.New("dispatch superseded by a newer command")
)
