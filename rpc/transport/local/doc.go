// Package local implements an in-process transport. Servers register their
// handler under the endpoint name of their config and clients call it
// directly, without serialization of the frame. It lets several nodes of one
// process talk through the regular rpc server and client, e.g. in tests.
package local
