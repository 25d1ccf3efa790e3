package cicmd

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-cms-ci/internal/ci"
)

const (
	storeAllMessageType = "cms.ci.store_all"
	statusMessageType   = "cms.ci.status"
)

// ErrRepositoryDisabled is returned when continuous integration is switched off.
var ErrRepositoryDisabled = errors.New("ci commands: repository is disabled")

// FeatureGates exposes runtime toggles read by the handlers.
type FeatureGates struct {
	RepositoryEnabled func() bool
}

func (g FeatureGates) repositoryEnabled() bool {
	if g.RepositoryEnabled == nil {
		return true
	}
	return g.RepositoryEnabled()
}

// StoreAllCommand rebuilds the repository from the database. An empty
// SiteName covers every site.
type StoreAllCommand struct {
	SiteName       string                    `json:"site_name,omitempty"`
	ResultCallback func(ci.StoreAllResult) `json:"-"`
}

// Type implements command.Message.
func (StoreAllCommand) Type() string { return storeAllMessageType }

// Validate implements command.Message.
func (m StoreAllCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.SiteName, validation.Length(0, 100)),
	)
}

// TelemetryFields scopes the command logs to the rebuilt site.
func (m StoreAllCommand) TelemetryFields() map[string]any {
	site := strings.TrimSpace(m.SiteName)
	if site == "" {
		site = "*"
	}
	return map[string]any{"site_name": site}
}

// StatusCommand compares the repository with its metadata and reports drift.
type StatusCommand struct {
	ResultCallback func([]ci.Drift) `json:"-"`
}

// Type implements command.Message.
func (StatusCommand) Type() string { return statusMessageType }

// Validate implements command.Message.
func (StatusCommand) Validate() error { return nil }
