package sharding

import (
	"errors"
	"fmt"
)

var (
	errInvalidThreshold   = errors.New("unsharded write threshold must be at least 0")
	errInvalidExtraShards = errors.New("extra shards must be at least 0")
	errInvalidStartOffset = errors.New("start offset must be at least 0")

	// ErrNegativeCount - the published record count was below zero.
	ErrNegativeCount = errors.New("record count must be at least 0")
)

func newInvalidThresholdError(threshold int64) error {
	return fmt.Errorf("%w. threshold: %v", errInvalidThreshold, threshold)
}

func newInvalidExtraShardsError(extra int64) error {
	return fmt.Errorf("%w. extraShards: %v", errInvalidExtraShards, extra)
}

func newInvalidStartOffsetError(offset int64) error {
	return fmt.Errorf("%w. startOffset: %v", errInvalidStartOffset, offset)
}

func newNegativeCountError(count int64) error {
	return fmt.Errorf("%w. count: %v", ErrNegativeCount, count)
}
