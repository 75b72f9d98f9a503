// Package shard - spreads records from N input channels over M output channels.
//
// used by writes that carry an explicit shard count: every output channel
// feeds exactly one shard writer, so all outputs must be consumed concurrently.
package shard
