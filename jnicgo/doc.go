// Package jnicgo implements jni.Bridge on a Java virtual machine started in
// process through the JNI invocation API.
//
// The implementation needs cgo and the JDK headers and is only compiled
// with the jni build tag:
//
//	export CGO_CFLAGS="-I$JAVA_HOME/include -I$JAVA_HOME/include/linux"
//	export CGO_LDFLAGS="-L$JAVA_HOME/lib/server -Wl,-rpath,$JAVA_HOME/lib/server"
//	go build -tags jni ./...
//
// Every bridge call locks its goroutine to an OS thread, attaches that
// thread to the VM if needed and runs inside its own local reference
// frame. References handed back to the binding core are global references,
// so they stay valid on any thread until DeleteRef.
package jnicgo
