// Package nn implements the one-dimensional layers the vocoder networks are
// built from: convolution and transposed convolution with plain or
// weight-normalized kernels, average pooling, and the stateless activation
// and padding stages.
//
// Kernels are always stored as [out][in/groups][kernel], also for transposed
// convolutions, so a weight-normalized magnitude is one scalar per output
// channel for both layer kinds. Convolutions are evaluated as im2col / col2im
// around a gonum matrix product, one goroutine per batch item.
package nn
