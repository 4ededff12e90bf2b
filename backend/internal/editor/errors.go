package editor

import "errors"

var (
	ErrUnknownBlock      = errors.New("UNKNOWN_BLOCK")
	ErrBlockNotOpen      = errors.New("BLOCK_NOT_OPEN")
	ErrUnknownMode       = errors.New("UNKNOWN_EDITOR_MODE")
	ErrUnknownCommand    = errors.New("UNKNOWN_COMMAND")
	ErrCommandNotAllowed = errors.New("COMMAND_NOT_ALLOWED")
	ErrMissingLinkURL    = errors.New("MISSING_LINK_URL")
)
