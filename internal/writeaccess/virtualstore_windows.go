//go:build windows

package writeaccess

import (
	"os"
	"path/filepath"
)

func platformVirtualStoreDir() string {
	local := os.Getenv("LOCALAPPDATA")
	if local == "" {
		return ""
	}
	return filepath.Join(local, "VirtualStore")
}
