// Copyright 2026 The Codespace Authors
// SPDX-License-Identifier: Apache-2.0

// Package service implements the CBOR-over-Unix-socket protocol shared
// by the codespace service and its clients.
//
// Two interaction styles share one socket:
//
//   - Actions: one request-response cycle per connection. The client
//     writes a CBOR map with an "action" field, the server routes it
//     to the registered [ActionFunc] and writes a [Response].
//   - Streams: long-lived connections for event subscriptions. The
//     request routes to a [StreamFunc], which owns the connection and
//     writes CBOR frames until the client disconnects or the server
//     shuts down.
//
// CBOR is self-delimiting, so neither style needs a framing protocol.
package service
