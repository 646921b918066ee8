package chat

import "errors"

var (
	ErrNameInvalid     = errors.New("chat: invalid channel name")
	ErrNameTooLong     = errors.New("chat: channel name too long")
	ErrNameNotUnique   = errors.New("chat: channel name not unique")
	ErrTooManyChannels = errors.New("chat: too many channels")
	ErrQuota           = errors.New("chat: channel quota exceeded")
	ErrCantAfford      = errors.New("chat: cannot afford channel")
	ErrPrivsDenied     = errors.New("chat: channel type not permitted")
	ErrAlreadyOn       = errors.New("chat: already on channel")
	ErrNotOn           = errors.New("chat: not on channel")
	ErrBadObject       = errors.New("chat: invalid object")
	ErrBadSnapshot     = errors.New("chat: bad snapshot")
)
