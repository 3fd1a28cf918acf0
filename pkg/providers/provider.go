package providers

import "errors"

// UtilityType represents the kind of utility a provider serves.
type UtilityType string

const (
	UtilityElectric UtilityType = "electric"
	UtilityGas      UtilityType = "gas"
	UtilityWater    UtilityType = "water"
)

// Provider is the base interface for all utility provider clients.
type Provider interface {
	// Key returns the unique identifier for the provider (e.g., "csg").
	Key() string
	// Name returns the human-readable name of the provider.
	Name() string
	// Type returns the utility type the provider serves.
	Type() UtilityType
}

// Common errors shared across providers.
var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrNoData           = errors.New("provider returned no data")
)
