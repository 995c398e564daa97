package d3d12

import "errors"

var (
	// ErrCommandListClosed is returned when recording into a closed list or
	// closing it twice.
	ErrCommandListClosed = errors.New("d3d12: command list is closed")

	// ErrCommandListOpen is returned when executing a list that was not
	// closed.
	ErrCommandListOpen = errors.New("d3d12: command list is still recording")

	// ErrNotMappable is returned when mapping a resource outside an upload or
	// readback heap.
	ErrNotMappable = errors.New("d3d12: resource is not CPU-visible")

	// ErrNoQueue is returned when the device has no queue of the requested
	// type.
	ErrNoQueue = errors.New("d3d12: no queue of the requested type")

	// ErrInvalidDesc is returned for resource descriptions the device
	// refuses before reaching the driver.
	ErrInvalidDesc = errors.New("d3d12: invalid resource description")

	// ErrDataSize is returned when upload or readback data does not match
	// the resource layout.
	ErrDataSize = errors.New("d3d12: data size does not match resource")
)
