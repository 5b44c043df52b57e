// Package dispatch runs accepted calculation requests on a bounded worker
// pool, off the HTTP request path.
//
// Submit never blocks and never rejects: jobs land in an unbounded FIFO and
// the caller gets its 202 regardless of pool saturation. Each job waits a
// randomized artificial delay, computes, then delivers its callback. All
// post-acceptance errors are terminal for that job — logged and counted,
// never propagated back to the original caller.
package dispatch
