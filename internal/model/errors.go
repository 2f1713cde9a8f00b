package model

import "errors"

// ErrNoCandidates means allocation found no eligible vehicle or carrier for
// a shipment. Fatal for that shipment; never replaced by a default.
var ErrNoCandidates = errors.New("no eligible vehicle or carrier for shipment")

// ErrNotFound is returned by stores for missing records.
var ErrNotFound = errors.New("not found")

// ErrPlanNotPending is returned when an allocation or routing write targets
// a plan that already left the pending state.
var ErrPlanNotPending = errors.New("plan is not pending")
