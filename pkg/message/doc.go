// Package message provides the immutable request and response values exchanged
// between the listener and the data providers.
//
// A Request is a snapshot of one inbound connection, taken once when the
// listener delivers it. A Response is a plain value: a status code, a content
// type and a body. Its serialized header block and output buffer are derived
// on demand and never stored.
//
//	resp := message.NewString(200, message.ContentTypeTextPlain, "hi")
//	conn.Write(resp.Output())
package message
