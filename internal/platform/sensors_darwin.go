package platform

// SMC temperature keys need elevated privileges on modern macOS; gopsutil
// still surfaces what it can, so attempt the read.
const sensorsSupported = true
