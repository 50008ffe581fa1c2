//go:build !windows

package directory

const defaultBackend = BackendSMB2
