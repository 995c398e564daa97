package main

import (
	"github.com/gogpu/gpuinterop/d3d12"
	"github.com/gogpu/gpuinterop/software"
)

func softwareDriver() d3d12.Driver { return software.NewDriver() }
