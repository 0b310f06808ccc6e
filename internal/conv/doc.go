// Package conv provides safe integer conversion utilities.
//
// These functions perform bounds checking so that sizes read from untrusted
// file headers (array shapes, row counts) cannot overflow when turned into
// byte lengths or slice indices.
package conv
