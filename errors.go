package authcore

import (
	"errors"

	"github.com/finflow/authcore/apperr"
)

var (
	// ErrBuilderUsed is returned when Build is called twice on one Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrRedisRequired is returned when a redis backend is selected without
	// a client or Redis URL.
	ErrRedisRequired = errors.New("redis backend selected but no redis client or URL configured")
)

// Kind sentinels re-exported for callers that only import authcore.
var (
	ErrNetwork      = apperr.ErrNetwork
	ErrServer       = apperr.ErrServer
	ErrDecoding     = apperr.ErrDecoding
	ErrUnauthorized = apperr.ErrUnauthorized
	ErrValidation   = apperr.ErrValidation
)
