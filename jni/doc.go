// Package jni binds JVM classes and objects to Go through a native
// invocation bridge.
//
// This package contains:
//   - the Bridge contract implemented by native, remote and simulated runtimes
//   - opaque reference and member-id handles (Ref, MemberID)
//   - per-class registries of resolved methods, constructors and fields
//   - the call dispatcher that validates arguments and selects the
//     return-type-specific entry point
//   - the error taxonomy shared by every bridge implementation
//
// An Env is single-threaded: every call blocks until the bridge returns and
// no two goroutines may use the same Env at once.
package jni
