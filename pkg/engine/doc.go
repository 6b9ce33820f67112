// Package engine controls the lifecycle of a virtual-hosting HTTP server.
//
// An Engine owns one lifecycle worker at a time. Its Start, Stop and Restart
// methods only record an intent and return; the worker goroutine applies the
// intent, binds or releases the listener, and reports every transition to
// the Delegate:
//
//	Start    AboutToStart → Started → StartedListening
//	         AboutToStart → FailedToSetPorts   (bad port list or certificate)
//	         AboutToStart → FailedToStart      (bind failed)
//	Stop     AboutToStop → DidStop
//	Restart  AboutToStop → DidStop → AboutToStart → Started → ...
//
// While running, each inbound request is resolved through the provider
// registry (per host when virtual hosting is enabled) and answered by the
// provider's Dispatch. Stop waits for in-flight dispatches before the
// listener is released, and no dispatch happens after DidStop.
package engine
