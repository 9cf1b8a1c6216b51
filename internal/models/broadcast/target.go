package models

import "errors"

// ErrInvalidTarget is returned when an audience selector string is not one of
// the recognized targets.
var ErrInvalidTarget = errors.New("unrecognized target")

// TargetSpec is the audience selector for a broadcast. It is a closed set of
// tags; free-form strings exist only at the API boundary.
type TargetSpec int

const (
	TargetAll TargetSpec = iota
	TargetPassengers
	TargetDrivers
)

// ParseTarget maps an API target string onto a TargetSpec.
func ParseTarget(s string) (TargetSpec, error) {
	switch s {
	case "all":
		return TargetAll, nil
	case "passengers":
		return TargetPassengers, nil
	case "drivers":
		return TargetDrivers, nil
	default:
		return 0, ErrInvalidTarget
	}
}

func (t TargetSpec) String() string {
	switch t {
	case TargetAll:
		return "all"
	case TargetPassengers:
		return "passengers"
	case TargetDrivers:
		return "drivers"
	default:
		return "unknown"
	}
}
