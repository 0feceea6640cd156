// Package bus defines the broadcast bus contract the session daemon talks to:
// topics, peer addresses, the closed set of inbound events, and the
// Sender/Receiver pair returned by a subscription.
//
// Transports implement Bus. The in-process Hub implements it as well so the
// daemon's full message path can be exercised without sockets.
package bus
