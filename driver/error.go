package driver

import "errors"

// ErrBackendNotFound means no registered factory claimed the kernel
// driver name during Select.
var ErrBackendNotFound = errors.New("driver: no backend claims this device")

// ErrUnsupportedFormat means a handle named a pixel format the backend
// doesn't know how to allocate or resolve.
var ErrUnsupportedFormat = errors.New("driver: unsupported pixel format")

// ErrSizeMismatch means Blit was asked to copy between rects of
// different sizes; no backend here supports scaling.
var ErrSizeMismatch = errors.New("driver: blit source and destination sizes differ")

// ErrNoBlitEngine means a backend was asked to Blit but has no command
// engine to do it with (Radeon and Nouveau carry no batch builder here).
// kms has no fallback copy path: a SwapCopy post fails with this error,
// and the cloned secondary output is not refreshed.
var ErrNoBlitEngine = errors.New("driver: backend has no blit engine")
