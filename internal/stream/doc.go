// Package stream implements the Tick Stream Engine.
//
// Per-connection state machine:
//
//	Connecting → Open    on successful handshake; initial tick burst for
//	                     all subscribed instruments
//	Open       → Open    randomized tick + fixed heartbeat emission
//	Open       → Closed  on client disconnect, context cancellation, or
//	                     write failure; all timers cancelled synchronously
//
// Subscription validation is strict: any unknown instrument id fails the
// whole connection attempt before the transport upgrade. The instrument set
// is fixed for the connection's lifetime.
//
// Stream ticks bypass the freshness cache; each connection evolves its own
// price series from the initial snapshot via an injectable Strategy.
package stream
