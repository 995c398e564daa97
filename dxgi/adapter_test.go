package dxgi

import "testing"

func TestLUIDRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0xdeadbeef, 0x00000001_00000002, 0xffffffff_ffffffff}
	for _, v := range values {
		l := LUIDFromUint64(v)
		if l.Uint64() != v {
			t.Errorf("LUIDFromUint64(%#x).Uint64() = %#x", v, l.Uint64())
		}
		if LUIDFromBytes(l.Bytes()) != l {
			t.Errorf("byte round trip failed for %#x", v)
		}
	}
}

func TestLUIDHalves(t *testing.T) {
	l := LUID{LowPart: 0x1234, HighPart: 1}
	if got := l.Uint64(); got != 0x1_00001234 {
		t.Errorf("Uint64() = %#x", got)
	}
	if l.String() != "00000001-00001234" {
		t.Errorf("String() = %q", l.String())
	}
	if l.IsZero() || !(LUID{}).IsZero() {
		t.Error("IsZero mismatch")
	}
}

func TestVendorFromPCI(t *testing.T) {
	tests := []struct {
		id   uint32
		want Vendor
	}{
		{0x10DE, VendorNVIDIA},
		{0x1002, VendorAMD},
		{0x8086, VendorIntel},
		{0x1414, VendorUnknown},
	}
	for _, tt := range tests {
		if got := VendorFromPCI(tt.id); got != tt.want {
			t.Errorf("VendorFromPCI(%#x) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestDecodeAdapterDesc(t *testing.T) {
	var raw AdapterDesc1
	EncodeUTF16(raw.Description[:], "NVIDIA GeForce RTX 4090")
	raw.VendorID = PCIVendorNVIDIA
	raw.AdapterLuid = LUID{LowPart: 7, HighPart: 0}
	raw.DedicatedVideoMemorySize = 1 << 30

	d := raw.Decode()
	if d.Name != "NVIDIA GeForce RTX 4090" {
		t.Errorf("Name = %q", d.Name)
	}
	if d.Vendor != VendorNVIDIA {
		t.Errorf("Vendor = %v", d.Vendor)
	}
	if d.LUID.Uint64() != 7 {
		t.Errorf("LUID = %v", d.LUID)
	}
	if d.IsSoftware() {
		t.Error("hardware adapter reported as software")
	}
}

func TestEncodeUTF16Truncates(t *testing.T) {
	dst := make([]uint16, 4)
	EncodeUTF16(dst, "abcdef")
	if got := DecodeUTF16(dst); got != "abc" {
		t.Errorf("got %q, want %q", got, "abc")
	}
	if dst[3] != 0 {
		t.Error("missing terminator")
	}
}
