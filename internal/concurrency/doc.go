// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock-free ring buffer and MPSC queue primitives shared by pipe and
// mailbox: the only two cross-thread data structures zlink needs, per
// spec §5's mailbox-only cross-thread interaction rule.
package concurrency
