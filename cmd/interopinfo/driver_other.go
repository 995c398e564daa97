//go:build !linux

package main

import "github.com/gogpu/gpuinterop/d3d12"

// softwareDriver returns nil: the reference adapter needs memfd.
func softwareDriver() d3d12.Driver { return nil }
