// Package profile classifies and summarizes table columns.
//
// It holds the data-quality primitives shared by profiling, preprocessing and
// the dataset API: semantic type inference, missing-token detection, outlier
// detection (IQR, Z-score, explicit range) and the column profiler that
// composes them. Everything here is a pure function of its inputs.
package profile
