// Package archive keeps snapshots of finished task packages so that results
// and failure chains can be inspected after the agents that produced them
// have returned.
//
// The engine archives every top-level task package once it is terminal;
// managers archive each delegated child after consuming its result.
package archive
