// Package hip is the HIP compute backend for AMD GPUs.
//
// The HIP runtime (amdhip64.dll or libamdhip64.so, or Config.HIPLibrary) is
// loaded at probe time and driven through its driver-style entry points,
// which mirror CUDA's. HIP drivers do not report adapter LUIDs reliably,
// so device matching falls back to the single-device and adapter-name
// rules.
package hip
