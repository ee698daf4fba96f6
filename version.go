package cadenza

// Version is the library version, overridable at build time via
// -ldflags "-X github.com/cadenzahq/cadenza.Version=...".
var Version = "0.1.0"
