package experiment

import "errors"

var (
	// ErrDuplicateExperiment rejects a Create against a name already taken.
	ErrDuplicateExperiment = errors.New("experiment name already exists")
	// ErrExperimentNotFound marks lookups by a name nothing was registered
	// under.
	ErrExperimentNotFound = errors.New("experiment not found")
	// ErrInvalidConfig wraps every config validation failure so handlers can
	// map the whole class to one status code.
	ErrInvalidConfig = errors.New("invalid experiment config")
)
