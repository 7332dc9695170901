package importer

import (
	"context"
	"errors"
	"fmt"

	"bidflow/internal/model"
	"bidflow/internal/repository"
)

// Credentials resolves the provider API key for a tenant: the tenant's own
// key first, then the process default for the source.
type Credentials struct {
	repo     repository.CredentialRepository
	defaults map[model.Source]string
}

func NewCredentials(repo repository.CredentialRepository, defaults map[model.Source]string) *Credentials {
	return &Credentials{repo: repo, defaults: defaults}
}

// Resolve returns a key or a *ConfigurationError when neither is set.
func (c *Credentials) Resolve(ctx context.Context, orgID string, source model.Source) (string, error) {
	key, err := c.repo.APIKey(ctx, orgID, source)
	switch {
	case err == nil && key != "":
		return key, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return "", fmt.Errorf("load %s key for org %s: %w", source, orgID, err)
	}
	if key := c.defaults[source]; key != "" {
		return key, nil
	}
	return "", &ConfigurationError{OrgID: orgID, Source: source, Reason: "no API key configured"}
}
