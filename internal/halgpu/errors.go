package halgpu

import "errors"

var (
	// ErrDeviceLost is returned while the device is lost and until Restore.
	ErrDeviceLost = errors.New("halgpu: GPU device lost")

	// ErrNoProgram is returned by Draw before a successful Build.
	ErrNoProgram = errors.New("halgpu: no program built")

	// ErrSlotUnbound is returned by Draw when a texture slot has no
	// texture.
	ErrSlotUnbound = errors.New("halgpu: texture slot unbound")

	// ErrReleased is returned by a context after Release.
	ErrReleased = errors.New("halgpu: context released")

	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("halgpu: provider closed")
)
