// Package logging adapts zap and zerolog loggers to framegate.Logger.
//
//	zl, _ := zap.NewProduction()
//	m := framegate.New(framegate.WithLogger(logging.NewZapAdapter(zl)))
package logging

import "fmt"

// fieldKey returns the key at keysAndValues[i]. Non-string keys are
// formatted rather than dropped.
func fieldKey(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}
