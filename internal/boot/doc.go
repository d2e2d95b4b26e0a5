// Package boot is the entry point the application shell calls at startup.
//
// Manager.InitVersionCheck runs once per boot, synchronously, before any
// feature code reads persisted state. It decides whether the stored state
// was written by a different build, reconciles it if so, dispatches the
// named-cache purge in the background and arms the refresh signal.
//
// The data-fetching layer then calls ShouldForceRefresh once and attaches
// NoCacheHeaders to its requests.
//
// Nothing in this package returns an error to the boot path: storage and
// capability failures are logged and degrade to doing less.
package boot
