//go:build !linux && !darwin

package platform

// No reliable sensor path on Windows or the BSDs without extra drivers.
const sensorsSupported = false
