package main

// Version information, overridden at build time via -ldflags.
var (
	Version   = "development"
	BuildDate = "unknown"
	GitCommit = "unknown"
)
