package main

// Version is the application version, overridden at build time with
// -ldflags "-X main.Version=...".
var Version = "dev"
