package importer

import (
	"errors"
	"fmt"

	"bidflow/internal/model"
)

var (
	// ErrInvalidRequest is returned for a manual import missing required
	// fields or naming an unknown source.
	ErrInvalidRequest = errors.New("invalid import request")
	// ErrNoDefaultProject is returned when no project was given and the
	// organization has no default.
	ErrNoDefaultProject = errors.New("organization has no default project")
)

// ConfigurationError reports a tenant that cannot be served with the
// current setup, such as a missing provider API key.
type ConfigurationError struct {
	OrgID  string
	Source model.Source
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for org %s source %s: %s", e.OrgID, e.Source, e.Reason)
}
