//go:build amd64 || arm64

package cudaapi

import (
	"testing"
	"unsafe"
)

func TestDescriptorLayouts(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"CUDA_EXTERNAL_MEMORY_HANDLE_DESC", unsafe.Sizeof(externalMemoryHandleDesc{}), 104},
		{"CUDA_EXTERNAL_MEMORY_BUFFER_DESC", unsafe.Sizeof(externalMemoryBufferDesc{}), 88},
		{"CUDA_ARRAY3D_DESCRIPTOR", unsafe.Sizeof(array3DDescriptor{}), 40},
		{"CUDA_EXTERNAL_MEMORY_MIPMAPPED_ARRAY_DESC", unsafe.Sizeof(externalMemoryMipmappedArrayDesc{}), 120},
		{"CUDA_EXTERNAL_SEMAPHORE_HANDLE_DESC", unsafe.Sizeof(externalSemaphoreHandleDesc{}), 96},
		{"CUDA_EXTERNAL_SEMAPHORE_SIGNAL_PARAMS", unsafe.Sizeof(externalSemaphoreSignalParams{}), 144},
		{"CUDA_EXTERNAL_SEMAPHORE_WAIT_PARAMS", unsafe.Sizeof(externalSemaphoreWaitParams{}), 144},
		{"CUDA_MEMCPY2D", unsafe.Sizeof(memcpy2D{}), 128},
		{"CUDA_MEMCPY3D", unsafe.Sizeof(memcpy3D{}), 200},
		{"CUDA_RESOURCE_DESC", unsafe.Sizeof(resourceDesc{}), 144},
		{"CUDA_TEXTURE_DESC", unsafe.Sizeof(textureDesc{}), 104},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("sizeof(%s) = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestDescriptorOffsets(t *testing.T) {
	if off := unsafe.Offsetof(externalMemoryHandleDesc{}.Size); off != 24 {
		t.Errorf("handle desc Size offset = %d, want 24", off)
	}
	if off := unsafe.Offsetof(memcpy3D{}.DstXInBytes); off != 88 {
		t.Errorf("memcpy3D DstXInBytes offset = %d, want 88", off)
	}
	if off := unsafe.Offsetof(resourceDesc{}.Flags); off != 136 {
		t.Errorf("resource desc Flags offset = %d, want 136", off)
	}
	if off := unsafe.Offsetof(externalSemaphoreWaitParams{}.Flags); off != 72 {
		t.Errorf("wait params Flags offset = %d, want 72", off)
	}
	if off := unsafe.Offsetof(externalSemaphoreSignalParams{}.Flags); off != 72 {
		t.Errorf("signal params Flags offset = %d, want 72", off)
	}
}
