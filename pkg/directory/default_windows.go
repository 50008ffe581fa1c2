//go:build windows

package directory

const defaultBackend = BackendNetAPI
