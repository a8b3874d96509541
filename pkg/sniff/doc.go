// Package sniff relays captured bus bytes to the host link as hex frames
// while keeping the host link alive with periodic heartbeats.
package sniff

// Wire format on the host link:
//
//	frame:     "rx" (" " HH)* "h" CRLF    HH is an uppercase hex byte
//	heartbeat: CR
//
// A frame is always written as one uninterrupted run. The capture handler
// and the liveness scheduler share the host link only through Sink, which
// serializes whole frames and single heartbeats.
