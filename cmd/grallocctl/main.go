// Command grallocctl is a small smoke-test harness for the gralloc
// device: open it, allocate a buffer, lock/write/unlock it, post it,
// and free it, printing the buffer's size, stride and global name after
// the allocation and "ok" at the end. It exists to exercise the library
// against a real /dev/dri node by hand; it is not part of the public
// API.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gralloc/drm"
	"github.com/gralloc/drm/driver"
	"github.com/gralloc/drm/handle"
)

func main() {
	devicePath := flag.String("device", "", "DRM device node (default /dev/dri/card0)")
	width := flag.Uint("width", 1920, "buffer width")
	height := flag.Uint("height", 1080, "buffer height")
	flag.Parse()

	gralloc.DevicePath = *devicePath

	dev, err := gralloc.GetDevice()
	if err != nil {
		fmt.Fprintln(os.Stderr, "grallocctl: open device:", err)
		os.Exit(1)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		dev.Shutdown()
		os.Exit(0)
	}()

	h, err := dev.Alloc(uint32(*width), uint32(*height), handle.FormatBGRA8888,
		handle.UsageSWWriteOften|handle.UsageHWFB|handle.UsageHWComposer)
	if err != nil {
		fmt.Fprintln(os.Stderr, "grallocctl: alloc:", err)
		os.Exit(1)
	}
	fmt.Printf("allocated %dx%d stride=%d global_name=%d\n", h.Width, h.Height, h.Stride, h.GlobalName)

	addr, err := dev.Lock(h, handle.UsageSWWriteOften, driver.Rect{W: h.Width, H: h.Height})
	if err != nil {
		fmt.Fprintln(os.Stderr, "grallocctl: lock:", err)
		os.Exit(1)
	}
	for i := range addr {
		addr[i] = 0xff
	}
	if err := dev.Unlock(h); err != nil {
		fmt.Fprintln(os.Stderr, "grallocctl: unlock:", err)
		os.Exit(1)
	}

	if err := dev.Post(h); err != nil {
		fmt.Fprintln(os.Stderr, "grallocctl: post:", err)
		os.Exit(1)
	}
	if err := dev.CompositionComplete(); err != nil {
		fmt.Fprintln(os.Stderr, "grallocctl: composition complete:", err)
		os.Exit(1)
	}

	if err := dev.Free(h); err != nil {
		fmt.Fprintln(os.Stderr, "grallocctl: free:", err)
		os.Exit(1)
	}
	fmt.Println("ok")
}
