package compositor

import "errors"

var (
	// ErrAllocation reports that a screen buffer could not be allocated at
	// the required resolution. The compositor cannot render without buffers.
	ErrAllocation = errors.New("compositor: screen buffer allocation failed")

	// ErrPermissionDenied is returned when a capability lacks the permission
	// an operation requires.
	ErrPermissionDenied = errors.New("compositor: permission denied")

	// ErrUnbalancedDecrement is returned when a reference count is
	// decremented without a matching increment by the same holder.
	ErrUnbalancedDecrement = errors.New("compositor: decrement without matching increment")

	// ErrUnknownScreen is returned for screen IDs the display does not report.
	ErrUnknownScreen = errors.New("compositor: unknown screen")

	// ErrUnknownWindow is returned for window IDs absent from the stack.
	ErrUnknownWindow = errors.New("compositor: unknown window")
)
