package server

import "errors"

var ErrInvalidTrack = errors.New("invalid track")
