package ingest

import "errors"

var (
	ErrSourceDisabled = errors.New("source disabled for session")
	ErrOutOfOrder     = errors.New("timestamp not increasing")
	ErrInvalidSample  = errors.New("invalid sample")
)
