//go:build windows && (amd64 || arm64)

package d3d12

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/dxgi"
	"github.com/gogpu/gpuinterop/handle"
)

var (
	d3d12DLL = windows.NewLazySystemDLL("d3d12.dll")
	dxgiDLL  = windows.NewLazySystemDLL("dxgi.dll")

	procD3D12CreateDevice      = d3d12DLL.NewProc("D3D12CreateDevice")
	procD3D12GetDebugInterface = d3d12DLL.NewProc("D3D12GetDebugInterface")
	procCreateDXGIFactory1     = dxgiDLL.NewProc("CreateDXGIFactory1")
)

var (
	iidIDXGIFactory1          = windows.GUID{Data1: 0x770aae78, Data2: 0xf26f, Data3: 0x4dba, Data4: [8]byte{0xa8, 0x29, 0x25, 0x3c, 0x83, 0xd1, 0xb3, 0x87}}
	iidID3D12Debug            = windows.GUID{Data1: 0x344488b7, Data2: 0x6846, Data3: 0x474b, Data4: [8]byte{0xb9, 0x89, 0xf0, 0x27, 0x44, 0x82, 0x45, 0xe0}}
	iidID3D12Device           = windows.GUID{Data1: 0x189819f1, Data2: 0x1db6, Data3: 0x4b57, Data4: [8]byte{0xbe, 0x54, 0x18, 0x21, 0x33, 0x9b, 0x85, 0xf7}}
	iidID3D12CommandQueue     = windows.GUID{Data1: 0x0ec870a6, Data2: 0x5d7e, Data3: 0x4c22, Data4: [8]byte{0x8c, 0xfc, 0x5b, 0xaa, 0xe0, 0x76, 0x16, 0xed}}
	iidID3D12CommandAllocator = windows.GUID{Data1: 0x6102dee4, Data2: 0xaf59, Data3: 0x4b09, Data4: [8]byte{0xb9, 0x99, 0xb4, 0x4d, 0x73, 0xf0, 0x9b, 0x24}}
	iidID3D12GraphicsCmdList  = windows.GUID{Data1: 0x5b160d0f, Data2: 0xac1b, Data3: 0x4185, Data4: [8]byte{0x8b, 0xa8, 0xb3, 0xae, 0x42, 0xa5, 0xa4, 0x55}}
	iidID3D12Resource         = windows.GUID{Data1: 0x696442be, Data2: 0xa72e, Data3: 0x4059, Data4: [8]byte{0xbc, 0x79, 0x5b, 0x5c, 0x98, 0x04, 0x0f, 0xad}}
	iidID3D12Fence            = windows.GUID{Data1: 0x0a753dcf, Data2: 0xc4d8, Data3: 0x4b91, Data4: [8]byte{0xad, 0xf6, 0xbe, 0x5a, 0x60, 0xd9, 0x5a, 0x76}}
	iidID3D12InfoQueue        = windows.GUID{Data1: 0x0742a90b, Data2: 0xc387, Data3: 0x483f, Data4: [8]byte{0xb9, 0x46, 0x30, 0xa7, 0xe4, 0xe6, 0x14, 0x58}}
)

// COM vtable indices.
const (
	vtQueryInterface = 0
	vtRelease        = 2

	vtFactoryEnumAdapters1 = 12
	vtAdapterGetDesc1      = 10

	vtDebugEnableDebugLayer = 3

	vtDeviceCreateCommandQueue      = 8
	vtDeviceCreateCommandAllocator  = 9
	vtDeviceCreateCommandList       = 12
	vtDeviceCheckFeatureSupport     = 13
	vtDeviceCreateCommittedResource = 27
	vtDeviceCreateSharedHandle      = 31
	vtDeviceCreateFence             = 36
	vtDeviceGetCopyableFootprints   = 38

	vtQueueExecuteCommandLists = 10
	vtQueueSignal              = 14
	vtQueueWait                = 15

	vtFenceGetCompletedValue      = 8
	vtFenceSetEventOnCompletion   = 9
	vtFenceSignal                 = 10
	vtResourceMap                 = 8
	vtResourceUnmap               = 9
	vtListClose                   = 9
	vtListCopyBufferRegion        = 15
	vtListCopyTextureRegion       = 16
	vtListCopyResource            = 17
	vtListResourceBarrier         = 26
	vtInfoQueuePushStorageFilter  = 17
	vtInfoQueueSetBreakOnSeverity = 31
)

const (
	dxgiErrorNotFound    = 0x887a0002
	dxgiErrorUnsupported = 0x887a0004
	eInvalidArg          = 0x80070057
	eNoInterface         = 0x80004002

	featureD3D12Options = 0
	genericAll          = 0x10000000
)

// comVtblFn resolves a COM vtable function pointer by index.
func comVtblFn(obj uintptr, idx int) uintptr {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtbl + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

func comCall(obj uintptr, idx int, args ...uintptr) uintptr {
	r, _, _ := syscall.SyscallN(comVtblFn(obj, idx), append([]uintptr{obj}, args...)...)
	return r
}

func comRelease(obj uintptr) {
	if obj != 0 {
		comCall(obj, vtRelease)
	}
}

func failed(hr uintptr) bool { return int32(hr) < 0 }

func hresultError(op string, hr uintptr) error {
	return &gpuinterop.APIError{
		API:     "d3d12",
		Op:      op,
		Code:    int64(int32(hr)),
		Message: windows.Errno(hr).Error(),
	}
}

type nativeDriver struct {
	mu       sync.Mutex
	factory  uintptr
	adapters []uintptr
}

// NewNativeDriver loads d3d12.dll and dxgi.dll and returns the COM driver.
func NewNativeDriver() (Driver, error) {
	if err := d3d12DLL.Load(); err != nil {
		return nil, fmt.Errorf("d3d12: %w: %w", gpuinterop.ErrUnsupportedPlatform, err)
	}
	if err := dxgiDLL.Load(); err != nil {
		return nil, fmt.Errorf("d3d12: %w: %w", gpuinterop.ErrUnsupportedPlatform, err)
	}
	var factory uintptr
	hr, _, _ := procCreateDXGIFactory1.Call(uintptr(unsafe.Pointer(&iidIDXGIFactory1)), uintptr(unsafe.Pointer(&factory)))
	if failed(hr) {
		return nil, hresultError("CreateDXGIFactory1", hr)
	}
	return &nativeDriver{factory: factory}, nil
}

func (d *nativeDriver) Name() string { return "d3d12" }

func (d *nativeDriver) Adapters() ([]AdapterInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.adapters {
		comRelease(a)
	}
	d.adapters = d.adapters[:0]

	var out []AdapterInfo
	for i := 0; ; i++ {
		var adapter uintptr
		hr := comCall(d.factory, vtFactoryEnumAdapters1, uintptr(i), uintptr(unsafe.Pointer(&adapter)))
		if uint32(hr) == dxgiErrorNotFound {
			break
		}
		if failed(hr) {
			return nil, hresultError("IDXGIFactory1::EnumAdapters1", hr)
		}
		var raw dxgi.AdapterDesc1
		if hr := comCall(adapter, vtAdapterGetDesc1, uintptr(unsafe.Pointer(&raw))); failed(hr) {
			comRelease(adapter)
			return nil, hresultError("IDXGIAdapter1::GetDesc1", hr)
		}
		d.adapters = append(d.adapters, adapter)
		out = append(out, AdapterInfo{Index: i, Desc: raw.Decode()})
	}
	return out, nil
}

func (d *nativeDriver) EnableDebugLayer() error {
	var debug uintptr
	hr, _, _ := procD3D12GetDebugInterface.Call(uintptr(unsafe.Pointer(&iidID3D12Debug)), uintptr(unsafe.Pointer(&debug)))
	if failed(hr) {
		return hresultError("D3D12GetDebugInterface", hr)
	}
	comCall(debug, vtDebugEnableDebugLayer)
	comRelease(debug)
	return nil
}

func (d *nativeDriver) CreateDevice(adapter AdapterInfo, level FeatureLevel) (DeviceDriver, error) {
	d.mu.Lock()
	if adapter.Index < 0 || adapter.Index >= len(d.adapters) {
		d.mu.Unlock()
		return nil, fmt.Errorf("d3d12: adapter %d not enumerated: %w", adapter.Index, gpuinterop.ErrNoMatchingAdapter)
	}
	a := d.adapters[adapter.Index]
	d.mu.Unlock()

	var dev uintptr
	hr, _, _ := procD3D12CreateDevice.Call(a, uintptr(level), uintptr(unsafe.Pointer(&iidID3D12Device)), uintptr(unsafe.Pointer(&dev)))
	switch {
	case uint32(hr) == dxgiErrorUnsupported || uint32(hr) == eInvalidArg:
		return nil, fmt.Errorf("d3d12: level %s: %w", level, gpuinterop.ErrUnsupportedFeatureLevel)
	case failed(hr):
		return nil, hresultError("D3D12CreateDevice", hr)
	}
	return &nativeDevice{dev: dev}, nil
}

type nativeDevice struct {
	dev uintptr
}

func (d *nativeDevice) Options() (FeatureOptions, error) {
	var opts [15]uint32
	hr := comCall(d.dev, vtDeviceCheckFeatureSupport, featureD3D12Options,
		uintptr(unsafe.Pointer(&opts)), unsafe.Sizeof(opts))
	if failed(hr) {
		return FeatureOptions{}, hresultError("ID3D12Device::CheckFeatureSupport", hr)
	}
	return FeatureOptions{
		TypedUAVLoadAdditionalFormats: opts[6] != 0,
		ROVsSupported:                 opts[7] != 0,
		ResourceHeapTier:              opts[14],
	}, nil
}

type infoQueueFilterDesc struct {
	numCategories uint32
	categories    uintptr
	numSeverities uint32
	severities    uintptr
	numIDs        uint32
	ids           uintptr
}

type infoQueueFilter struct {
	allow infoQueueFilterDesc
	deny  infoQueueFilterDesc
}

func (d *nativeDevice) ConfigureInfoQueue(filter InfoQueueFilter) error {
	var iq uintptr
	hr := comCall(d.dev, vtQueryInterface, uintptr(unsafe.Pointer(&iidID3D12InfoQueue)), uintptr(unsafe.Pointer(&iq)))
	if uint32(hr) == eNoInterface {
		return nil
	}
	if failed(hr) {
		return hresultError("QueryInterface(ID3D12InfoQueue)", hr)
	}
	defer comRelease(iq)

	for _, sev := range filter.BreakOnSeverity {
		if hr := comCall(iq, vtInfoQueueSetBreakOnSeverity, uintptr(sev), 1); failed(hr) {
			return hresultError("ID3D12InfoQueue::SetBreakOnSeverity", hr)
		}
	}
	if len(filter.DenyIDs) == 0 {
		return nil
	}
	f := infoQueueFilter{deny: infoQueueFilterDesc{
		numIDs: uint32(len(filter.DenyIDs)),
		ids:    uintptr(unsafe.Pointer(&filter.DenyIDs[0])),
	}}
	if hr := comCall(iq, vtInfoQueuePushStorageFilter, uintptr(unsafe.Pointer(&f))); failed(hr) {
		return hresultError("ID3D12InfoQueue::PushStorageFilter", hr)
	}
	return nil
}

type commandQueueDesc struct {
	typ      CommandListType
	priority int32
	flags    uint32
	nodeMask uint32
}

func (d *nativeDevice) CreateQueue(typ CommandListType) (QueueDriver, error) {
	desc := commandQueueDesc{typ: typ}
	var q uintptr
	hr := comCall(d.dev, vtDeviceCreateCommandQueue, uintptr(unsafe.Pointer(&desc)),
		uintptr(unsafe.Pointer(&iidID3D12CommandQueue)), uintptr(unsafe.Pointer(&q)))
	if failed(hr) {
		return nil, hresultError("ID3D12Device::CreateCommandQueue", hr)
	}
	var fence uintptr
	hr = comCall(d.dev, vtDeviceCreateFence, 0, uintptr(FenceFlagNone),
		uintptr(unsafe.Pointer(&iidID3D12Fence)), uintptr(unsafe.Pointer(&fence)))
	if failed(hr) {
		comRelease(q)
		return nil, hresultError("ID3D12Device::CreateFence", hr)
	}
	return &nativeQueue{dev: d, typ: typ, queue: q, fence: fence}, nil
}

func (d *nativeDevice) CreateCommittedResource(info *ResourceCreateInfo) (ResourceDriver, error) {
	var clear uintptr
	if info.ClearValue != nil {
		clear = uintptr(unsafe.Pointer(info.ClearValue))
	}
	var res uintptr
	hr := comCall(d.dev, vtDeviceCreateCommittedResource,
		uintptr(unsafe.Pointer(&info.Heap)), uintptr(info.HeapFlags),
		uintptr(unsafe.Pointer(&info.Desc)), uintptr(info.InitialState), clear,
		uintptr(unsafe.Pointer(&iidID3D12Resource)), uintptr(unsafe.Pointer(&res)))
	if failed(hr) {
		return nil, hresultError("ID3D12Device::CreateCommittedResource", hr)
	}
	return &nativeResource{dev: d, res: res, heap: info.Heap.Type, size: info.Desc.Width}, nil
}

func (d *nativeDevice) CreateFence(initial uint64, flags FenceFlags) (FenceDriver, error) {
	var f uintptr
	hr := comCall(d.dev, vtDeviceCreateFence, uintptr(initial), uintptr(flags),
		uintptr(unsafe.Pointer(&iidID3D12Fence)), uintptr(unsafe.Pointer(&f)))
	if failed(hr) {
		return nil, hresultError("ID3D12Device::CreateFence", hr)
	}
	return &nativeFence{dev: d, fence: f}, nil
}

func (d *nativeDevice) CreateEvent() (EventDriver, error) {
	h, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("d3d12: CreateEvent: %w", err)
	}
	return nativeEvent(h), nil
}

// placedFootprint matches D3D12_PLACED_SUBRESOURCE_FOOTPRINT.
type placedFootprint struct {
	offset    uint64
	footprint SubresourceFootprint
	_         uint32
}

func (d *nativeDevice) CopyableFootprints(desc *ResourceDesc, first, num uint32, baseOffset uint64) ([]PlacedSubresourceFootprint, uint64) {
	if num == 0 {
		return nil, 0
	}
	layouts := make([]placedFootprint, num)
	rows := make([]uint32, num)
	rowSizes := make([]uint64, num)
	var total uint64
	comCall(d.dev, vtDeviceGetCopyableFootprints, uintptr(unsafe.Pointer(desc)),
		uintptr(first), uintptr(num), uintptr(baseOffset),
		uintptr(unsafe.Pointer(&layouts[0])), uintptr(unsafe.Pointer(&rows[0])),
		uintptr(unsafe.Pointer(&rowSizes[0])), uintptr(unsafe.Pointer(&total)))
	out := make([]PlacedSubresourceFootprint, num)
	for i := range layouts {
		out[i] = PlacedSubresourceFootprint{
			Offset:         layouts[i].offset,
			Footprint:      layouts[i].footprint,
			NumRows:        rows[i],
			RowSizeInBytes: rowSizes[i],
		}
	}
	return out, total
}

func (d *nativeDevice) Close() error {
	comRelease(d.dev)
	d.dev = 0
	return nil
}

func exportShared(d *nativeDevice, obj uintptr, name string) (*handle.Handle, error) {
	wname, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	var h uintptr
	hr := comCall(d.dev, vtDeviceCreateSharedHandle, obj, 0, genericAll,
		uintptr(unsafe.Pointer(wname)), uintptr(unsafe.Pointer(&h)))
	if failed(hr) {
		return nil, hresultError("ID3D12Device::CreateSharedHandle", hr)
	}
	return handle.FromNT(h), nil
}

type nativeResource struct {
	dev  *nativeDevice
	res  uintptr
	heap HeapType
	size uint64 // mappable bytes; staging resources are buffers
}

func (r *nativeResource) Map(subresource uint32) ([]byte, error) {
	if r.heap != HeapTypeUpload && r.heap != HeapTypeReadback {
		return nil, ErrNotMappable
	}
	var ptr uintptr
	hr := comCall(r.res, vtResourceMap, uintptr(subresource), 0, uintptr(unsafe.Pointer(&ptr)))
	if failed(hr) {
		return nil, hresultError("ID3D12Resource::Map", hr)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), r.size), nil
}

func (r *nativeResource) Unmap(subresource uint32) {
	comCall(r.res, vtResourceUnmap, uintptr(subresource), 0)
}

func (r *nativeResource) CreateSharedHandle(name string) (*handle.Handle, error) {
	return exportShared(r.dev, r.res, name)
}

func (r *nativeResource) Release() error {
	comRelease(r.res)
	r.res = 0
	return nil
}

type nativeFence struct {
	dev   *nativeDevice
	fence uintptr
}

func (f *nativeFence) CompletedValue() uint64 {
	return uint64(comCall(f.fence, vtFenceGetCompletedValue))
}

func (f *nativeFence) Signal(value uint64) error {
	if hr := comCall(f.fence, vtFenceSignal, uintptr(value)); failed(hr) {
		return hresultError("ID3D12Fence::Signal", hr)
	}
	return nil
}

func (f *nativeFence) SetEventOnCompletion(value uint64, e EventDriver) error {
	ev, ok := e.(nativeEvent)
	if !ok {
		return fmt.Errorf("d3d12: foreign event %T", e)
	}
	if hr := comCall(f.fence, vtFenceSetEventOnCompletion, uintptr(value), uintptr(ev)); failed(hr) {
		return hresultError("ID3D12Fence::SetEventOnCompletion", hr)
	}
	return nil
}

func (f *nativeFence) CreateSharedHandle(name string) (*handle.Handle, error) {
	return exportShared(f.dev, f.fence, name)
}

func (f *nativeFence) Release() error {
	comRelease(f.fence)
	f.fence = 0
	return nil
}

type nativeEvent windows.Handle

func (e nativeEvent) Wait(timeout time.Duration) (bool, error) {
	ms := uint32(windows.INFINITE)
	if timeout >= 0 {
		ms = uint32(timeout.Milliseconds())
	}
	ev, err := windows.WaitForSingleObject(windows.Handle(e), ms)
	switch {
	case err != nil:
		return false, fmt.Errorf("d3d12: WaitForSingleObject: %w", err)
	case ev == windows.WAIT_OBJECT_0:
		return true, nil
	case ev == uint32(windows.WAIT_TIMEOUT):
		return false, nil
	default:
		return false, fmt.Errorf("d3d12: WaitForSingleObject returned %#x", ev)
	}
}

func (e nativeEvent) Close() error {
	return windows.CloseHandle(windows.Handle(e))
}

// inFlight keeps a submitted allocator/list pair alive until the queue's
// internal fence passes value.
type inFlight struct {
	value     uint64
	allocator uintptr
	list      uintptr
}

type nativeQueue struct {
	dev   *nativeDevice
	typ   CommandListType
	queue uintptr

	fence   uintptr
	value   uint64
	pending []inFlight
}

func (q *nativeQueue) reclaim() {
	done := uint64(comCall(q.fence, vtFenceGetCompletedValue))
	n := 0
	for _, p := range q.pending {
		if p.value <= done {
			comRelease(p.list)
			comRelease(p.allocator)
			continue
		}
		q.pending[n] = p
		n++
	}
	q.pending = q.pending[:n]
}

func (q *nativeQueue) Execute(lists []*CommandList) error {
	q.reclaim()
	natives := make([]uintptr, 0, len(lists))
	var batch []inFlight
	release := func() {
		for _, b := range batch {
			comRelease(b.list)
			comRelease(b.allocator)
		}
	}
	for _, l := range lists {
		alloc, list, err := q.record(l)
		if err != nil {
			release()
			return err
		}
		batch = append(batch, inFlight{allocator: alloc, list: list})
		natives = append(natives, list)
	}
	if len(natives) == 0 {
		return nil
	}
	comCall(q.queue, vtQueueExecuteCommandLists, uintptr(len(natives)), uintptr(unsafe.Pointer(&natives[0])))
	q.value++
	if hr := comCall(q.queue, vtQueueSignal, q.fence, uintptr(q.value)); failed(hr) {
		return hresultError("ID3D12CommandQueue::Signal", hr)
	}
	for i := range batch {
		batch[i].value = q.value
	}
	q.pending = append(q.pending, batch...)
	return nil
}

type textureCopyLocation struct {
	resource  uintptr
	typ       CopyLocationType
	_         uint32
	offset    uint64 // SubresourceIndex shares the first four bytes
	footprint SubresourceFootprint
	_         uint32
}

func toNativeLocation(loc TextureCopyLocation) textureCopyLocation {
	out := textureCopyLocation{resource: loc.Resource.(*nativeResource).res, typ: loc.Type}
	if loc.Type == CopyLocationSubresourceIndex {
		out.offset = uint64(loc.SubresourceIndex)
	} else {
		out.offset = loc.PlacedFootprint.Offset
		out.footprint = loc.PlacedFootprint.Footprint
	}
	return out
}

type resourceBarrier struct {
	typ         uint32
	flags       uint32
	resource    uintptr
	subresource uint32
	before      ResourceStates
	after       ResourceStates
	_           uint32
}

func (q *nativeQueue) record(l *CommandList) (alloc, list uintptr, err error) {
	hr := comCall(q.dev.dev, vtDeviceCreateCommandAllocator, uintptr(q.typ),
		uintptr(unsafe.Pointer(&iidID3D12CommandAllocator)), uintptr(unsafe.Pointer(&alloc)))
	if failed(hr) {
		return 0, 0, hresultError("ID3D12Device::CreateCommandAllocator", hr)
	}
	hr = comCall(q.dev.dev, vtDeviceCreateCommandList, 0, uintptr(q.typ), alloc, 0,
		uintptr(unsafe.Pointer(&iidID3D12GraphicsCmdList)), uintptr(unsafe.Pointer(&list)))
	if failed(hr) {
		comRelease(alloc)
		return 0, 0, hresultError("ID3D12Device::CreateCommandList", hr)
	}
	res := func(r ResourceDriver) uintptr { return r.(*nativeResource).res }
	for _, c := range l.Commands() {
		switch c.Kind {
		case CommandCopyBufferRegion:
			comCall(list, vtListCopyBufferRegion, res(c.Dst), uintptr(c.DstOffset), res(c.Src), uintptr(c.SrcOffset), uintptr(c.NumBytes))
		case CommandCopyTextureRegion:
			dst, src := toNativeLocation(c.DstLocation), toNativeLocation(c.SrcLocation)
			comCall(list, vtListCopyTextureRegion, uintptr(unsafe.Pointer(&dst)),
				uintptr(c.DstX), uintptr(c.DstY), uintptr(c.DstZ), uintptr(unsafe.Pointer(&src)), 0)
		case CommandCopyResource:
			comCall(list, vtListCopyResource, res(c.Dst), res(c.Src))
		case CommandTransition:
			b := resourceBarrier{
				resource:    res(c.Barrier.Resource),
				subresource: c.Barrier.Subresource,
				before:      c.Barrier.Before,
				after:       c.Barrier.After,
			}
			comCall(list, vtListResourceBarrier, 1, uintptr(unsafe.Pointer(&b)))
		}
	}
	if hr := comCall(list, vtListClose); failed(hr) {
		comRelease(list)
		comRelease(alloc)
		return 0, 0, hresultError("ID3D12GraphicsCommandList::Close", hr)
	}
	return alloc, list, nil
}

func (q *nativeQueue) Signal(f FenceDriver, value uint64) error {
	if hr := comCall(q.queue, vtQueueSignal, f.(*nativeFence).fence, uintptr(value)); failed(hr) {
		return hresultError("ID3D12CommandQueue::Signal", hr)
	}
	return nil
}

func (q *nativeQueue) Wait(f FenceDriver, value uint64) error {
	if hr := comCall(q.queue, vtQueueWait, f.(*nativeFence).fence, uintptr(value)); failed(hr) {
		return hresultError("ID3D12CommandQueue::Wait", hr)
	}
	return nil
}

// Close waits for the queue to drain and releases it.
func (q *nativeQueue) Close() error {
	var errs []error
	if uint64(comCall(q.fence, vtFenceGetCompletedValue)) < q.value {
		ev, err := windows.CreateEvent(nil, 0, 0, nil)
		if err != nil {
			errs = append(errs, err)
		} else {
			comCall(q.fence, vtFenceSetEventOnCompletion, uintptr(q.value), uintptr(ev))
			if _, err := windows.WaitForSingleObject(ev, windows.INFINITE); err != nil {
				errs = append(errs, err)
			}
			_ = windows.CloseHandle(ev)
		}
	}
	q.reclaim()
	comRelease(q.fence)
	comRelease(q.queue)
	q.fence, q.queue = 0, 0
	return errors.Join(errs...)
}
