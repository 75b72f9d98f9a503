package autoshard

import (
	"errors"
	"fmt"
	"time"
)

var (
	errInvalidWorkerSize = errors.New("must use at least 1 worker")
	errInvalidBufferSize = errors.New("buffer must be at least 0")
	errInvalidPartitions = errors.New("must use at least 1 partition")

	errInvalidMinWorkerSize  = errors.New("must use at least 0 min workers")
	errInvalidTTL            = errors.New("ttl must use at least 0 ns")
	errMinWorkerSizeTooLarge = errors.New("minWorkerSize cannot be larger than workerSize")

	// ErrViewNotReady - a broadcast view was read before its producing stage published it.
	ErrViewNotReady = errors.New("view has not been published")
	// ErrViewAlreadyPublished - a broadcast view can only be published once.
	ErrViewAlreadyPublished = errors.New("view already published")
)

func newInvalidWorkerSizeError(workerSize int) error {
	return fmt.Errorf("%w. workerSize: %v", errInvalidWorkerSize, workerSize)
}

func newInvalidBufferSizeError(bufferSize int) error {
	return fmt.Errorf("%w. bufferSize: %v", errInvalidBufferSize, bufferSize)
}

func newInvalidMinWorkerSizeError(minWorkerSize int) error {
	return fmt.Errorf("%w. minWorkerSize: %v", errInvalidMinWorkerSize, minWorkerSize)
}

func newInvalidTTLError(ttl time.Duration) error {
	return fmt.Errorf("%w. ttlElastic: %v ns", errInvalidTTL, ttl.Nanoseconds())
}

func newMinWorkerSizeTooLargeError(minWorkerSize, maxWorkerSize int) error {
	return fmt.Errorf("%w. minWorkerSize: %v workerSize: %v", errMinWorkerSizeTooLarge, minWorkerSize, maxWorkerSize)
}

func newInvalidPartitionsError(partitions int) error {
	return fmt.Errorf("%w. partitions: %v", errInvalidPartitions, partitions)
}

func newViewNotReadyError(name string) error {
	return fmt.Errorf("%w. view: %v", ErrViewNotReady, name)
}

func newViewAlreadyPublishedError(name string) error {
	return fmt.Errorf("%w. view: %v", ErrViewAlreadyPublished, name)
}
