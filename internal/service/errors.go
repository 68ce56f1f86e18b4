package service

import "errors"

var (
	ErrSlskdUnreachable = errors.New("slskd is unreachable")
	ErrNoTracks         = errors.New("no tracks to fetch")
)
