// Command interopinfo lists D3D12 adapters, the compute APIs present on the
// machine and which compute device each adapter resolves to.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/gogpu/gpuinterop"
	"github.com/gogpu/gpuinterop/compute"
	_ "github.com/gogpu/gpuinterop/compute/cuda"
	_ "github.com/gogpu/gpuinterop/compute/hip"
	_ "github.com/gogpu/gpuinterop/compute/levelzero"
	_ "github.com/gogpu/gpuinterop/compute/sycl"
	"github.com/gogpu/gpuinterop/d3d12"
	"github.com/gogpu/gputypes"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		software   = flag.Bool("software", false, "use the host-memory reference adapter")
		verbose    = flag.Bool("v", false, "log backend probing")
		dumpConfig = flag.Bool("dump-config", false, "print the effective configuration and exit")
		formats    = flag.Bool("formats", false, "list importable image formats and exit")
	)
	flag.Parse()

	if *verbose {
		gpuinterop.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cfg := gpuinterop.CurrentConfig()
	if *configPath != "" {
		loaded, err := gpuinterop.LoadConfig(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = *loaded
	}
	gpuinterop.SetConfig(&cfg)

	if *dumpConfig {
		data, err := cfg.Encode()
		if err != nil {
			log.Fatal(err)
		}
		os.Stdout.Write(data)
		return
	}

	if *formats {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		printFormats(w)
		w.Flush()
		return
	}

	drv, err := openDriver(*software)
	if err != nil {
		log.Fatal(err)
	}

	reg := compute.NewRegistry(compute.WithConfig(cfg))
	defer reg.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	printBackends(w, reg)
	if err := printAdapters(w, drv, reg); err != nil {
		log.Fatal(err)
	}
	w.Flush()
}

func openDriver(software bool) (d3d12.Driver, error) {
	if software {
		drv := softwareDriver()
		if drv == nil {
			return nil, fmt.Errorf("software adapter: %w", gpuinterop.ErrUnsupportedPlatform)
		}
		return drv, nil
	}
	drv, err := d3d12.NewNativeDriver()
	if errors.Is(err, gpuinterop.ErrUnsupportedPlatform) {
		if soft := softwareDriver(); soft != nil {
			log.Printf("%v; using the software adapter", err)
			return soft, nil
		}
	}
	return drv, err
}

func printFormats(w *tabwriter.Writer) {
	fmt.Fprintln(w, "DXGI\tWEBGPU\tCHANNELS\tBYTES")
	all := compute.SupportedFormats()
	slices.Sort(all)
	for _, f := range all {
		c, err := compute.TranslateFormat(f)
		if err != nil {
			continue
		}
		webgpu := "-"
		if t := f.GPUType(); t != gputypes.TextureFormatUndefined {
			webgpu = t.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%d x %s%d\t%d\n", f, webgpu, c.Channels, c.Kind, c.Bits, c.ElementSize())
	}
}

func printBackends(w *tabwriter.Writer, reg *compute.Registry) {
	fmt.Fprintln(w, "API\tSTATUS\tDEVICES")
	for _, api := range compute.Available() {
		b, err := reg.Backend(api)
		if err != nil {
			fmt.Fprintf(w, "%s\t%v\t-\n", api, reg.ProbeError(api))
			continue
		}
		devices, err := b.Devices()
		if err != nil {
			fmt.Fprintf(w, "%s\tpresent\t%v\n", api, err)
			continue
		}
		if len(devices) == 0 {
			fmt.Fprintf(w, "%s\tpresent\tnone\n", api)
		}
		for _, d := range devices {
			fmt.Fprintf(w, "%s\tpresent\t%s\n", api, d)
		}
	}
	fmt.Fprintln(w)
}

func printAdapters(w *tabwriter.Writer, drv d3d12.Driver, reg *compute.Registry) error {
	adapters, err := d3d12.RankAdapters(drv, d3d12.AnyAdapter)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "ADAPTER (%s)\tVENDOR\tLUID\tVRAM\tCOMPUTE\n", drv.Name())
	for _, a := range adapters {
		var target string
		b, info, err := reg.Resolve(compute.AdapterIdentity{LUID: a.Desc.LUID, Name: a.Desc.Name})
		switch {
		case err == nil:
			target = fmt.Sprintf("%s %s", b.API(), info)
		case errors.Is(err, gpuinterop.ErrUnsupportedComputeAPI):
			target = "no compute API"
		case errors.Is(err, gpuinterop.ErrNoMatchingDevice):
			target = "no matching device"
		default:
			target = err.Error()
		}
		fmt.Fprintf(w, "%d:%s\t%s\t%s\t%d MiB\t%s\n",
			a.Index, a.Desc.Name, a.Desc.Vendor, a.Desc.LUID, a.Desc.DedicatedVideoMem>>20, target)
	}
	return nil
}
