// Package engine implements the renewal protocol that keeps sessiond's
// cookie jars consistent while requests are in flight. The Coordinator
// stamps every outgoing request with the jar version it was prepared
// against and compares that stamp to the live version when the response
// arrives: equal versions merge and accept, a trailing stamp marks the
// response stale and resubmits the original request under the current
// jar, and a leading stamp is an invariant violation that drops the
// response rather than risking corruption of a newer jar.
//
// The package also provides a reference dispatch Loop, a single
// goroutine that drains a priority bypass channel ahead of the normal
// submission channel and funnels every dispatch through one accounting
// point, so renewal requests jump the queue without ever being counted
// differently from scheduler-issued work.
package engine
