// Package kfmt provides the formatted output primitives used by the
// kernel's boot path. Output emitted before an output sink is attached is
// captured by a ring buffer and replayed once SetOutputSink is invoked.
package kfmt

import (
	"fmt"
	"io"
)

var (
	// earlyPrintBuffer stores Printf output that is emitted before an
	// output sink is attached.
	earlyPrintBuffer ringBuffer

	// outputSink is an io.Writer where Printf will send its output. If
	// set to nil, then the output will be redirected to the
	// earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and
// copies any data accumulated in the early print buffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// GetOutputSink returns the io.Writer that currently receives the output
// of Printf calls.
func GetOutputSink() io.Writer {
	return outputSink
}

// Printf formats its arguments and writes the result to the registered
// output sink. If no sink has been attached yet the output accumulates in
// the early print buffer.
func Printf(format string, args ...interface{}) {
	if outputSink == nil {
		fmt.Fprintf(&earlyPrintBuffer, format, args...)
		return
	}

	fmt.Fprintf(outputSink, format, args...)
}

// Fprintf formats its arguments and writes the result to w.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
