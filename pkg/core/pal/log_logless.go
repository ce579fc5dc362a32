//go:build logless

package pal

// defaultEmitLog is a no-op on logless builds, so microcontroller
// targets never link zerolog. Mirrors pkg/core/logger/logger.empty.go's
// EmptyLog: same seam, bodies compiled away.
func defaultEmitLog(entry LogEntry) {}
