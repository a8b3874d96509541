// Package bus provides the passive receive side of the observed serial bus.
package bus

// The bus is receive-only. Bytes read from the port are appended to a
// bounded Buffer which raises an activity signal. The signal is coalescing:
// any number of arrivals before a drain collapse into one pending trigger,
// so consumers must drain everything available each time they are woken.
