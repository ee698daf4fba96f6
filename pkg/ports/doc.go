// Package ports defines the interfaces between the Cadenza engine and its
// external collaborators: the reasoning engine, the state store, the record
// store and the distributed locker.
//
// Adapters live under pkg/adapters; the engine depends only on these
// interfaces.
package ports
