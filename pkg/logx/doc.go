// Package logx is a thin structured logging layer over zerolog.
//
// It exists so components can hold a stable Logger value while the Service
// swaps sinks and levels at runtime (config reload). The zero Logger is a
// safe no-op, which keeps constructors tolerant of missing wiring.
package logx
