package runtime

import (
	"slices"

	"github.com/drblury/sentryflow/capability"
	configpkg "github.com/drblury/sentryflow/internal/runtime/config"
	errspkg "github.com/drblury/sentryflow/internal/runtime/errors"
)

// Feature names an optional listener group. The values match the config toggles.
type Feature string

const (
	FeatureConsoleListener   Feature = configpkg.ConsoleListenerKey
	FeatureRequestListener   Feature = configpkg.RequestListenerKey
	FeatureUserListener      Feature = configpkg.UserListenerKey
	FeatureMessengerResetter Feature = configpkg.MessengerResetterKey
)

type featureRequirement struct {
	feature      Feature
	capabilities []capability.ID
	requires     Feature
}

// featureTable is checked in order; the first missing capability wins.
var featureTable = []featureRequirement{
	{feature: FeatureConsoleListener, capabilities: []capability.ID{capability.Console, capability.Logger}},
	{feature: FeatureRequestListener, capabilities: []capability.ID{capability.HTTPKernel, capability.Logger}},
	{feature: FeatureUserListener, capabilities: []capability.ID{capability.Security}, requires: FeatureRequestListener},
	{feature: FeatureMessengerResetter, capabilities: []capability.ID{capability.Messenger}},
}

// FeatureSet is the ordered list of features that passed activation.
type FeatureSet []Feature

// Has reports whether f is active.
func (s FeatureSet) Has(f Feature) bool {
	return slices.Contains(s, f)
}

// Strings returns the feature names, for logging.
func (s FeatureSet) Strings() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = string(f)
	}
	return out
}

// Activate decides which features to wire. It validates the configuration,
// then checks the capabilities of every enabled feature and finally the
// combinations between features. Disabled features are never checked. A nil
// registry means capability.DefaultRegistry.
func Activate(conf *configpkg.Config, reg *capability.Registry) (FeatureSet, error) {
	if err := configpkg.ValidateConfig(conf); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = capability.DefaultRegistry
	}

	var active FeatureSet
	for _, req := range featureTable {
		if !conf.Enabled(string(req.feature)) {
			continue
		}
		for _, id := range req.capabilities {
			if !reg.Has(id) {
				return nil, errspkg.MissingCapabilityError{
					Feature:    string(req.feature),
					Capability: string(id),
					Hint:       capability.Hint(id),
				}
			}
		}
		active = append(active, req.feature)
	}

	for _, req := range featureTable {
		if req.requires == "" || !active.Has(req.feature) {
			continue
		}
		if !active.Has(req.requires) {
			return nil, errspkg.InvalidCombinationError{
				Reason: string(req.feature) + " requires " + string(req.requires),
			}
		}
	}

	return active, nil
}
