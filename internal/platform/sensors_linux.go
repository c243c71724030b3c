package platform

// Linux exposes thermal zones and hwmon sensors through sysfs.
const sensorsSupported = true
