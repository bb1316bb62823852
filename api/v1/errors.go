package v1

import "errors"

var (
	ErrBadAvatarID = errors.New("avatar id must be a positive integer")
	ErrUpgrade     = errors.New("websocket upgrade failed")
	ErrContentType = errors.New("Content-Type must be application/json")
	ErrBadBody     = errors.New("malformed request body")
)
