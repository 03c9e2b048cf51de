//go:build !windows

package writeaccess

func platformVirtualStoreDir() string { return "" }
