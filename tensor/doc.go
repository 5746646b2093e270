// Package tensor provides the dense [batch, channels, length] arrays that flow
// through the vocoder networks and the mel front end.
//
// A Tensor owns a single row-major float64 slice. Waveforms are tensors with
// one channel, mel spectrograms have one channel per mel band. Operations
// that can violate a shape contract return a *ShapeError instead of
// panicking, so callers get the offending shapes in the error message.
package tensor
