package feature

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Category groups features by the business domain they belong to.
type Category string

const (
	CategoryPayment       Category = "payment"
	CategoryLending       Category = "lending"
	CategoryInvestment    Category = "investment"
	CategorySavings       Category = "savings"
	CategoryAdmin         Category = "admin"
	CategorySecurity      Category = "security"
	CategoryCommunication Category = "communication"
	CategoryOther         Category = "other"
)

// Valid reports whether the category is part of the known set.
func (c Category) Valid() bool {
	switch c {
	case CategoryPayment, CategoryLending, CategoryInvestment, CategorySavings,
		CategoryAdmin, CategorySecurity, CategoryCommunication, CategoryOther:
		return true
	}
	return false
}

// Status is an informational lifecycle tag. It is independent of Enabled:
// a feature in "testing" can be enabled and a feature in "active" can be
// disabled.
type Status string

const (
	StatusPlanning    Status = "planning"
	StatusDevelopment Status = "development"
	StatusTesting     Status = "testing"
	StatusActive      Status = "active"
	StatusPaused      Status = "paused"
	StatusDeprecated  Status = "deprecated"
)

// Valid reports whether the status is part of the known set.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanning, StatusDevelopment, StatusTesting, StatusActive,
		StatusPaused, StatusDeprecated:
		return true
	}
	return false
}

// Platform is an evaluation scope. Evaluating a feature against a platform
// outside its Platforms set always yields "off".
type Platform string

const (
	PlatformWeb    Platform = "web"
	PlatformMobile Platform = "mobile"
)

// Feature is a named, independently toggleable capability with platform
// scope and gradual rollout.
type Feature struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"` // unique machine key, immutable after creation
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	Category    Category  `json:"category"`

	Platforms []Platform `json:"platforms"`
	Status    Status     `json:"status"`

	// Enabled is the master switch: when false the feature is off for
	// everyone regardless of rollout percentage or platform.
	Enabled bool `json:"enabled"`

	// RolloutPercentage is the fraction of target identities in [0,100]
	// that receive "on" while Enabled is true.
	RolloutPercentage int `json:"rollout_percentage"`

	Config map[string]ConfigValue `json:"config,omitempty"`

	// Retired marks a logically deleted feature. The record and its audit
	// trail are retained; evaluation always yields "off".
	Retired bool `json:"retired"`

	// Version implements optimistic concurrency at the store boundary.
	// Every successful mutation increments it; a mismatch on write is a
	// conflict the caller resolves by re-reading.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPlatform reports whether the feature can be evaluated on the platform.
func (f Feature) HasPlatform(p Platform) bool {
	return slices.Contains(f.Platforms, p)
}

// Validate checks the feature record invariants.
func (f *Feature) Validate() error {
	if f.Name == "" {
		return errors.Join(ErrValidation, errors.New("name is required"))
	}
	if !f.Category.Valid() {
		return errors.Join(ErrValidation, fmt.Errorf("unknown category %q", f.Category))
	}
	if !f.Status.Valid() {
		return errors.Join(ErrValidation, fmt.Errorf("unknown status %q", f.Status))
	}
	if len(f.Platforms) == 0 {
		return errors.Join(ErrValidation, errors.New("platforms cannot be empty"))
	}
	for _, p := range f.Platforms {
		if p == "" {
			return errors.Join(ErrValidation, errors.New("platform cannot be empty"))
		}
	}
	if f.RolloutPercentage < 0 || f.RolloutPercentage > 100 {
		return errors.Join(ErrValidation,
			fmt.Errorf("rollout percentage %d out of range [0,100]", f.RolloutPercentage))
	}
	for key, value := range f.Config {
		if key == "" {
			return errors.Join(ErrValidation, errors.New("config key cannot be empty"))
		}
		if err := value.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// clone returns a deep copy so stored records can never be reached through
// values handed to callers.
func (f Feature) clone() Feature {
	f.Platforms = slices.Clone(f.Platforms)
	if f.Config != nil {
		config := make(map[string]ConfigValue, len(f.Config))
		for k, v := range f.Config {
			config[k] = v
		}
		f.Config = config
	}
	return f
}
