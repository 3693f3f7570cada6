package web

import (
	"os"
	"strings"
)

// boardModelPaths are where the device tree exposes the board name.
var boardModelPaths = []string{
	"/sys/firmware/devicetree/base/model",
	"/proc/device-tree/model",
}

// boardModel returns e.g. "Raspberry Pi 4 Model B Rev 1.4", or "" on boards
// without a device tree.
func boardModel() string {
	for _, p := range boardModelPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		model := strings.Trim(strings.TrimSpace(string(b)), "\x00")
		if model != "" {
			return model
		}
	}
	return ""
}
