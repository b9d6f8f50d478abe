package probe

import "errors"

// ErrInvalidRange is returned by SetBitrates when min > start, start > max,
// or a negative rate is supplied. The event is otherwise ignored: no state
// is mutated and no cluster is emitted.
var ErrInvalidRange = errors.New("probe: invalid bitrate range")

// ErrNonMonotonicTime is returned (informationally) by Process when at_time
// is older than the timestamp of the previous event. The controller still
// clamps to the previous timestamp and proceeds; this error exists so a
// scheduler with clock skew can notice and correct itself.
var ErrNonMonotonicTime = errors.New("probe: at_time went backwards")

// ErrConfigOutOfRange is returned by NewConfig/New when a supplied tunable
// is outside its documented domain. Construction still succeeds with the
// offending field replaced by its DefaultConfig value.
var ErrConfigOutOfRange = errors.New("probe: config value out of range")
