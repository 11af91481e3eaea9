// Package plane implements the overlay-plane reservation manager exposed
// to an external composer: reserve/disable_all/set_handle, plus the
// commit step the posting path runs implicitly at flip time.
package plane

import "errors"

// ErrBusy means no inactive plane matched a reserve request.
var ErrBusy = errors.New("plane: no free plane fits this request")

// ErrInval means the handle presented to reserve has an empty plane-mask.
var ErrInval = errors.New("plane: handle plane-mask is empty")

// ErrNotReserved means set_handle named a slot id with no active
// reservation.
var ErrNotReserved = errors.New("plane: set_handle on an unreserved slot")
