package utils

import (
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

// MeasureTime logs elapsed time of a pipeline stage. Use with defer.
func MeasureTime(name string, start time.Time) {
	goapp.Log.Info().Dur("elapsed", time.Since(start)).Str("func", name).Msg("time")
}
