// Package daemonrun assembles a daemon process from configuration: logging,
// the identity store, the peer book, the gossip node and the session itself.
package daemonrun
