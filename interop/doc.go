// Package interop imports D3D12 resources and fences into a compute API.
//
// A Session pairs one d3d12.Device with the compute device on the same
// physical GPU, chosen from the registry by LUID. Shareable resources are
// then imported as an ExternalBuffer or ExternalImage, and shareable fences
// as an ExternalSemaphore:
//
//	s, err := interop.NewSession(dev)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	buf, err := s.ImportBuffer(res)
//	...
//	sem, err := s.ImportSemaphore(fence)
//	...
//	stream, _ := s.NewStream()
//	sem.Wait(stream, 1)           // D3D12 finished producing
//	buf.CopyToHostPtrAsync(out, stream)
//	sem.Signal(stream, 2)         // compute side done
//
// Ordering between the two APIs comes only from the shared fence. Imported
// objects must be destroyed before the D3D12 objects they came from.
//
// Errors matching gpuinterop.ErrUnsupportedComputeAPIFeature are
// recoverable: the backend refused a request that looked valid, and callers
// can fall back to staging through host memory. They are reported through
// gpuinterop.ReportFeatureError before being returned.
package interop
