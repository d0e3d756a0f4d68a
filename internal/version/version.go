// ABOUTME: Version information for nu-go binaries
// ABOUTME: Printed by --version and logged at startup
package version

const (
	// Version is the release of this build
	Version = "0.1.0"
	// Product names the software in the handshake
	Product = "nu-go"
	// Manufacturer identifies who builds it
	Manufacturer = "Resonate Protocol"
)
