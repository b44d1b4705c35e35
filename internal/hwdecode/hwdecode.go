// Package hwdecode detects hardware video decoding capabilities.
//
// Hardware acceleration is used for DECODING only. Encoding is always
// software (libsvtav1). VideoToolbox is assumed present on macOS; on Linux a
// VAAPI render node is selected by scanning /dev/dri.
package hwdecode

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

var vaapiDriverDirs = []string{"/usr/lib/x86_64-linux-gnu/dri", "/usr/lib/dri"}

// Capabilities describes the detected hardware decoders.
type Capabilities struct {
	VideoToolbox    bool   // macOS only
	VAAPI           bool   // Linux only
	VAAPIDevicePath string // selected render node, e.g. /dev/dri/renderD128
	VAAPIDriver     string // selected driver; LIBVA_DRIVER_NAME overrides the choice
}

// Detect probes the current host for hardware decoding support.
func Detect() Capabilities {
	if runtime.GOOS == "darwin" {
		return Capabilities{VideoToolbox: true}
	}
	if runtime.GOOS == "linux" {
		if dev, ok := detectVAAPIDevice(); ok {
			return Capabilities{
				VAAPI:           true,
				VAAPIDevicePath: dev.path,
				VAAPIDriver:     dev.driver,
			}
		}
	}
	return Capabilities{}
}

// Available reports whether any hardware decoder was detected.
func (c Capabilities) Available() bool {
	return c.VideoToolbox || c.VAAPI
}

// Name returns a short display name for the detected decoder, or empty.
func (c Capabilities) Name() string {
	switch {
	case c.VideoToolbox:
		return "VideoToolbox"
	case c.VAAPI:
		return "VAAPI"
	default:
		return ""
	}
}

// FFmpegArgs returns the hardware decode preamble. These arguments must be
// placed before the input file on the ffmpeg command line.
func (c Capabilities) FFmpegArgs() []string {
	switch {
	case c.VideoToolbox:
		return []string{"-hwaccel", "videotoolbox"}
	case c.VAAPI:
		args := []string{"-hwaccel", "vaapi"}
		if c.VAAPIDevicePath != "" {
			args = append(args, "-hwaccel_device", c.VAAPIDevicePath)
		}
		return args
	default:
		return nil
	}
}

type vaapiDevice struct {
	path   string
	driver string
}

type vaapiCandidate struct {
	path          string
	renderNode    string
	driver        string
	driverPresent bool
}

// detectVAAPIDevice selects a render node. LIBVA_DRIVER_NAME wins when it
// matches an installed driver; otherwise the preference order is
// nvidia, radeonsi, iHD, then the first node with any installed driver.
func detectVAAPIDevice() (vaapiDevice, bool) {
	candidates := gatherVAAPICandidates()
	if len(candidates) == 0 {
		return vaapiDevice{}, false
	}

	if envDriver := os.Getenv("LIBVA_DRIVER_NAME"); envDriver != "" {
		for _, c := range candidates {
			if c.driverPresent && strings.EqualFold(c.driver, envDriver) {
				return vaapiDevice{path: c.path, driver: c.driver}, true
			}
		}
	}

	for _, preferred := range []string{"nvidia", "radeonsi", "iHD"} {
		for _, c := range candidates {
			if c.driverPresent && strings.EqualFold(c.driver, preferred) {
				return vaapiDevice{path: c.path, driver: c.driver}, true
			}
		}
	}

	for _, c := range candidates {
		if c.driverPresent {
			return vaapiDevice{path: c.path, driver: c.driver}, true
		}
	}

	return vaapiDevice{}, false
}

func gatherVAAPICandidates() []vaapiCandidate {
	entries, err := os.ReadDir("/dev/dri")
	if err != nil {
		return nil
	}

	var candidates []vaapiCandidate
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "renderD") {
			continue
		}

		driver := vendorToDriverName(readVendorID(name))
		driverPresent := true
		if driver != "" {
			driverPresent = libvaDriverAvailable(driver)
		}

		candidates = append(candidates, vaapiCandidate{
			path:          "/dev/dri/" + name,
			renderNode:    name,
			driver:        driver,
			driverPresent: driverPresent,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].renderNode < candidates[j].renderNode
	})
	return candidates
}

func readVendorID(renderNode string) string {
	data, err := os.ReadFile(filepath.Join("/sys/class/drm", renderNode, "device/vendor"))
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(string(data)))
}

func vendorToDriverName(vendor string) string {
	switch vendor {
	case "0x10de":
		return "nvidia"
	case "0x1002", "0x1022":
		return "radeonsi"
	case "0x8086":
		return "iHD"
	default:
		return ""
	}
}

func libvaDriverAvailable(driver string) bool {
	driverFile := driver + "_drv_video.so"
	for _, dir := range vaapiDriverDirs {
		if _, err := os.Stat(filepath.Join(dir, driverFile)); err == nil {
			return true
		}
	}
	return false
}
