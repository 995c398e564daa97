package dxgi

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// LUID is a locally unique adapter identifier. Two API objects describing
// the same physical GPU report the same LUID.
type LUID struct {
	LowPart  uint32
	HighPart int32
}

// LUIDFromUint64 splits v into the low and high halves.
func LUIDFromUint64(v uint64) LUID {
	return LUID{LowPart: uint32(v), HighPart: int32(uint32(v >> 32))}
}

// LUIDFromBytes reads the 8-byte little-endian form used by CUDA, HIP and
// Level Zero (cuDeviceGetLuid, ze_device_luid_ext_t).
func LUIDFromBytes(b [8]byte) LUID {
	return LUIDFromUint64(binary.LittleEndian.Uint64(b[:]))
}

// Uint64 merges the two halves into one 64-bit value.
func (l LUID) Uint64() uint64 {
	return uint64(uint32(l.HighPart))<<32 | uint64(l.LowPart)
}

// Bytes returns the 8-byte little-endian form.
func (l LUID) Bytes() [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], l.Uint64())
	return b
}

// IsZero reports whether l is unset.
func (l LUID) IsZero() bool { return l.LowPart == 0 && l.HighPart == 0 }

func (l LUID) String() string {
	return fmt.Sprintf("%08x-%08x", uint32(l.HighPart), l.LowPart)
}

// Vendor is a GPU vendor tag derived from the PCI vendor ID.
type Vendor uint8

// Vendors.
const (
	VendorUnknown Vendor = iota
	VendorNVIDIA
	VendorAMD
	VendorIntel
)

// PCI vendor IDs.
const (
	PCIVendorNVIDIA = 0x10DE
	PCIVendorAMD    = 0x1002
	PCIVendorIntel  = 0x8086
)

// VendorFromPCI maps a PCI vendor ID to a Vendor.
func VendorFromPCI(id uint32) Vendor {
	switch id {
	case PCIVendorNVIDIA:
		return VendorNVIDIA
	case PCIVendorAMD:
		return VendorAMD
	case PCIVendorIntel:
		return VendorIntel
	default:
		return VendorUnknown
	}
}

func (v Vendor) String() string {
	switch v {
	case VendorNVIDIA:
		return "NVIDIA"
	case VendorAMD:
		return "AMD"
	case VendorIntel:
		return "Intel"
	default:
		return "Unknown"
	}
}

// AdapterFlag is a DXGI_ADAPTER_FLAG bitmask.
type AdapterFlag uint32

// Adapter flags.
const (
	AdapterFlagNone     AdapterFlag = 0
	AdapterFlagRemote   AdapterFlag = 1
	AdapterFlagSoftware AdapterFlag = 2
)

// AdapterDesc1 matches DXGI_ADAPTER_DESC1.
type AdapterDesc1 struct {
	Description               [128]uint16
	VendorID                  uint32
	DeviceID                  uint32
	SubSysID                  uint32
	Revision                  uint32
	DedicatedVideoMemorySize  uintptr
	DedicatedSystemMemorySize uintptr
	SharedSystemMemorySize    uintptr
	AdapterLuid               LUID
	Flags                     AdapterFlag
}

// AdapterDesc is the decoded identity of an adapter.
type AdapterDesc struct {
	Name               string
	VendorID           uint32
	DeviceID           uint32
	Vendor             Vendor
	LUID               LUID
	DedicatedVideoMem  uint64
	DedicatedSystemMem uint64
	SharedSystemMem    uint64
	Flags              AdapterFlag
}

// IsSoftware reports whether the adapter is a software rasterizer.
func (d *AdapterDesc) IsSoftware() bool {
	return d.Flags&AdapterFlagSoftware != 0
}

// Decode converts the raw descriptor into an AdapterDesc.
func (d *AdapterDesc1) Decode() AdapterDesc {
	return AdapterDesc{
		Name:               DecodeUTF16(d.Description[:]),
		VendorID:           d.VendorID,
		DeviceID:           d.DeviceID,
		Vendor:             VendorFromPCI(d.VendorID),
		LUID:               d.AdapterLuid,
		DedicatedVideoMem:  uint64(d.DedicatedVideoMemorySize),
		DedicatedSystemMem: uint64(d.DedicatedSystemMemorySize),
		SharedSystemMem:    uint64(d.SharedSystemMemorySize),
		Flags:              d.Flags,
	}
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// DecodeUTF16 decodes a NUL-terminated UTF-16 array such as
// DXGI_ADAPTER_DESC1.Description. Invalid sequences decode as U+FFFD.
func DecodeUTF16(s []uint16) string {
	n := 0
	for n < len(s) && s[n] != 0 {
		n++
	}
	b := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(b[2*i:], s[i])
	}
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// EncodeUTF16 is the inverse of DecodeUTF16 for fixed-size arrays; the
// result is truncated to fit dst including the terminator.
func EncodeUTF16(dst []uint16, s string) {
	b, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return
	}
	n := len(b) / 2
	if n > len(dst)-1 {
		n = len(dst) - 1
	}
	for i := 0; i < n; i++ {
		dst[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}
