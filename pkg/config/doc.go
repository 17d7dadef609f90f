// Package config loads and validates the user-facing optimization
// configuration.
//
// Configurations are written in YAML and pass three validation stages: the
// raw document is checked against a CUE schema, the decoded struct is
// checked with validator struct tags, and cross-field consistency rules
// are applied. The package also derives the engine-facing artifacts the
// rest of the system consumes: the flat optimizer configuration, the axis
// display names used by the report tables, and the optional control-space
// transform.
package config
