package extractor

import "errors"

// ErrNoEventsExtracted is returned when a run produces zero AuthEvents.
var ErrNoEventsExtracted = errors.New("did not include logs to be visualized")

// ErrTimeParse is returned when a SystemTime value matches neither accepted layout.
var ErrTimeParse = errors.New("extractor: SystemTime did not match either accepted layout")
