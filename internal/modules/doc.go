// Package modules contains the placeholder modules the template engine
// dispatches to.
//
// Each subdirectory is one module implementing the `module.Module` interface.
// Modules are assembled in `internal/app/modules.go` and registered with the
// registry at startup.
package modules
