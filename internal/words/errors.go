package words

import (
	"errors"
	"fmt"

	"dictation/internal/models"
)

// ErrMalformedList is returned when a word list cannot be used as-is
var ErrMalformedList = errors.New("malformed word list")

// LevelLoadError reports a word list that could not be loaded.
// The level stays out of the cache until a later load succeeds.
type LevelLoadError struct {
	Language models.Language
	Level    models.Level
	Err      error
}

func (e *LevelLoadError) Error() string {
	return fmt.Sprintf("load %s/%s: %v", e.Language, e.Level, e.Err)
}

func (e *LevelLoadError) Unwrap() error {
	return e.Err
}
