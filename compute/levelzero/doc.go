// Package levelzero is the oneAPI Level Zero compute backend.
//
// The loader (ze_loader.dll or libze_loader.so.1, or
// Config.LevelZeroLibrary) is bound with purego at probe time. Only drivers
// that expose the device LUID extension take part in adapter matching.
//
// Streams are immediate command lists. Device.NewCommandList also offers
// regular command lists, which batch work until Synchronize; external
// semaphores cannot be signaled or waited on from them.
package levelzero
