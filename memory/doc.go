// Package memory holds the working memory of one reasoning loop invocation:
// the seeded task header followed by the ordered sequence of model, action
// and observation turns.
//
// A Memory is written by exactly one loop. Observers (tests, tracing hooks,
// the engine) may read it concurrently.
package memory
