// Package daemon runs one identity's chat session: it joins a room on the
// gossip bus, prints what arrives, and broadcasts whatever local clients
// write to its control socket.
//
// A session moves through Init, Connecting, Online, ShuttingDown and Stopped
// exactly once. Every resource acquired on the way (the identity lock, the
// subscription, the control socket) is released on every exit path.
package daemon
