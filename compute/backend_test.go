package compute

import "errors"

// fakeBackend is a Backend with a fixed device list and no real devices.
type fakeBackend struct {
	api        API
	devices    []DeviceInfo
	devicesErr error
	initErr    error
	unreliable bool

	inits  int
	closed bool
}

var _ Backend = (*fakeBackend)(nil)

func (b *fakeBackend) API() API { return b.api }

func (b *fakeBackend) Init() error {
	b.inits++
	return b.initErr
}

func (b *fakeBackend) Devices() ([]DeviceInfo, error) { return b.devices, b.devicesErr }

func (b *fakeBackend) UnreliableLUID() bool { return b.unreliable }

func (b *fakeBackend) Open(DeviceInfo) (Device, error) { return nil, errNoDevice }

func (b *fakeBackend) Close() error {
	b.closed = true
	return nil
}

var errNoDevice = errors.New("fake backend has no devices to open")

// fakeArray is an Array that belongs to no backend.
type fakeArray struct{}

func (fakeArray) Handle() uintptr { return 1 }
