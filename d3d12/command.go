package d3d12

import "sync"

// AllSubresources selects every subresource in a transition barrier.
const AllSubresources = 0xffffffff

// CommandKind tags a recorded command.
type CommandKind uint8

// Command kinds.
const (
	CommandCopyBufferRegion CommandKind = iota + 1
	CommandCopyTextureRegion
	CommandCopyResource
	CommandTransition
)

// CopyLocationType is a D3D12_TEXTURE_COPY_TYPE value.
type CopyLocationType uint32

// Copy location types.
const (
	CopyLocationSubresourceIndex CopyLocationType = 0
	CopyLocationPlacedFootprint  CopyLocationType = 1
)

// TextureCopyLocation matches D3D12_TEXTURE_COPY_LOCATION.
type TextureCopyLocation struct {
	Resource         ResourceDriver
	Type             CopyLocationType
	SubresourceIndex uint32
	PlacedFootprint  PlacedSubresourceFootprint
}

// SubresourceLocation addresses one subresource of a texture.
func SubresourceLocation(r *Resource, subresource uint32) TextureCopyLocation {
	return TextureCopyLocation{
		Resource:         r.native,
		Type:             CopyLocationSubresourceIndex,
		SubresourceIndex: subresource,
	}
}

// FootprintLocation addresses a placed footprint inside a buffer.
func FootprintLocation(r *Resource, fp PlacedSubresourceFootprint) TextureCopyLocation {
	return TextureCopyLocation{
		Resource:        r.native,
		Type:            CopyLocationPlacedFootprint,
		PlacedFootprint: fp,
	}
}

// TransitionBarrier matches D3D12_RESOURCE_TRANSITION_BARRIER.
type TransitionBarrier struct {
	Resource    ResourceDriver
	Subresource uint32
	Before      ResourceStates
	After       ResourceStates
}

// Command is one recorded command. Which fields are meaningful depends on
// Kind.
type Command struct {
	Kind CommandKind

	// CopyBufferRegion and CopyResource.
	Dst       ResourceDriver
	DstOffset uint64
	Src       ResourceDriver
	SrcOffset uint64
	NumBytes  uint64

	// CopyTextureRegion.
	DstLocation      TextureCopyLocation
	DstX, DstY, DstZ uint32
	SrcLocation      TextureCopyLocation

	// Transition.
	Barrier TransitionBarrier
}

// CommandList records copies and barriers for later execution on a Queue.
// Recording into the same list from several goroutines requires external
// serialization.
type CommandList struct {
	typ    CommandListType
	closed bool
	cmds   []Command
}

// Type returns the list type.
func (l *CommandList) Type() CommandListType { return l.typ }

// Closed reports whether recording has finished.
func (l *CommandList) Closed() bool { return l.closed }

// Commands returns the recorded commands.
func (l *CommandList) Commands() []Command { return l.cmds }

func (l *CommandList) record(c Command) error {
	if l.closed {
		return ErrCommandListClosed
	}
	l.cmds = append(l.cmds, c)
	return nil
}

// CopyBufferRegion copies n bytes between buffers.
func (l *CommandList) CopyBufferRegion(dst *Resource, dstOffset uint64, src *Resource, srcOffset, n uint64) error {
	return l.record(Command{
		Kind:      CommandCopyBufferRegion,
		Dst:       dst.native,
		DstOffset: dstOffset,
		Src:       src.native,
		SrcOffset: srcOffset,
		NumBytes:  n,
	})
}

// CopyTextureRegion copies a whole subresource or footprint from src to dst
// at (x, y, z).
func (l *CommandList) CopyTextureRegion(dst TextureCopyLocation, x, y, z uint32, src TextureCopyLocation) error {
	return l.record(Command{
		Kind:        CommandCopyTextureRegion,
		DstLocation: dst,
		DstX:        x,
		DstY:        y,
		DstZ:        z,
		SrcLocation: src,
	})
}

// CopyResource copies the full contents of src into dst.
func (l *CommandList) CopyResource(dst, src *Resource) error {
	return l.record(Command{Kind: CommandCopyResource, Dst: dst.native, Src: src.native})
}

// Transition records a state transition of every subresource of r.
func (l *CommandList) Transition(r *Resource, before, after ResourceStates) error {
	if before == after {
		return nil
	}
	return l.record(Command{
		Kind: CommandTransition,
		Barrier: TransitionBarrier{
			Resource:    r.native,
			Subresource: AllSubresources,
			Before:      before,
			After:       after,
		},
	})
}

// Close finishes recording.
func (l *CommandList) Close() error {
	if l.closed {
		return ErrCommandListClosed
	}
	l.closed = true
	return nil
}

// Reset clears the list and reopens it for recording.
func (l *CommandList) Reset() {
	l.cmds = l.cmds[:0]
	l.closed = false
}

// CommandAllocator hands out command lists of one type.
type CommandAllocator struct {
	typ CommandListType

	mu   sync.Mutex
	free []*CommandList
}

func newCommandAllocator(typ CommandListType) *CommandAllocator {
	return &CommandAllocator{typ: typ}
}

// Type returns the list type this allocator serves.
func (a *CommandAllocator) Type() CommandListType { return a.typ }

// NewCommandList returns an open, empty command list.
func (a *CommandAllocator) NewCommandList() *CommandList {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.free); n > 0 {
		l := a.free[n-1]
		a.free = a.free[:n-1]
		l.Reset()
		return l
	}
	return &CommandList{typ: a.typ}
}

// Recycle returns a list whose execution has completed.
func (a *CommandAllocator) Recycle(l *CommandList) {
	if l == nil || l.typ != a.typ {
		return
	}
	a.mu.Lock()
	a.free = append(a.free, l)
	a.mu.Unlock()
}
