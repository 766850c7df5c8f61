// Package delegate implements the Delegated Scan subsystem of spec.md §4.5
// (component C6): a producer goroutine walks an access method and batches
// item pointers, handing each full batch to the consumer; the consumer
// fetches and visibility-checks the referenced heap tuples.
//
// The original (nodeDelegatedIndexscan.c, WeaverConnection.c) used a worker
// thread plus a mutex/condvar handoff and a read-trigger callback for
// partial-batch wakeups. Per spec.md §9's redesign note this is replaced
// with a single unbuffered channel: the producer sends a batch once it holds
// TransferMax item pointers, at the end of the scan, or earlier when
// Handle.Trigger asks it to flush the partial batch it holds (SUPPLEMENTED
// FEATURES #5). Nothing in this package calls Trigger itself: without a
// Trigger call, a waiting consumer gets nothing until a batch is full or the
// scan ends.
package delegate

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/weaverdb/weaverdb-sub001/access"
)

// TransferMax is the default batch size the producer accumulates before
// handing a batch to the consumer, mirroring the original's constant of the
// same name.
const TransferMax = 64

// Source is the producer's input: typically an access.Scan, adapted by
// ScanSource below.
type Source interface {
	Next() (access.ItemPointer, bool, error)
}

// ScanSource adapts an access.Scan to Source.
type ScanSource struct{ Scan access.Scan }

func (s ScanSource) Next() (access.ItemPointer, bool, error) { return s.Scan.GetNext() }

// Handle is the consumer's view of a running producer: a delegate handle
// per spec.md's glossary, owning the bounded buffer and the worker
// goroutine.
type Handle struct {
	transferMax int
	batchCh     chan []access.ItemPointer
	triggerCh   chan struct{}
	errCh       chan error
	cancelCh    chan struct{}
	done        chan struct{}
	log         *logrus.Entry

	current []access.ItemPointer
	pos     int
	drained bool
}

// Start spawns the producer goroutine over src. sortByBlock enables the
// original's block-number pre-sort, which spec.md §4.5 only applies when
// the scan is non-ordered (direction == NoMovement at plan time). The
// handoff/backpressure tracing below goes to logrus's standard logger (safe
// for goroutine use: logrus.Entry.WithField returns a new *Entry per call,
// and the base logrus.Logger's level check takes its own lock).
func Start(src Source, sortByBlock bool) *Handle {
	return StartLogging(src, sortByBlock, nil)
}

// StartLogging is Start with an explicit *logrus.Entry for batch/trigger
// tracing, for callers that want delegated-scan handoffs visible in their
// structured logs. A nil log means logrus's standard logger.
func StartLogging(src Source, sortByBlock bool, log *logrus.Entry) *Handle {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &Handle{
		transferMax: TransferMax,
		batchCh:     make(chan []access.ItemPointer),
		triggerCh:   make(chan struct{}, 1),
		errCh:       make(chan error, 1),
		cancelCh:    make(chan struct{}),
		done:        make(chan struct{}),
		log:         log,
	}
	go h.run(src, sortByBlock)
	return h
}

// Trigger asks the producer to flush its current partial batch immediately
// instead of waiting for TransferMax, mirroring the original's read-trigger
// wakeup for an idle consumer (SUPPLEMENTED FEATURES #5).
func (h *Handle) Trigger() {
	select {
	case h.triggerCh <- struct{}{}:
		h.log.Debug("delegate: consumer triggered early flush")
	default:
	}
}

func (h *Handle) run(src Source, sortByBlock bool) {
	defer close(h.done)
	defer close(h.batchCh)
	batch := make([]access.ItemPointer, 0, h.transferMax)

	flush := func(reason string) bool {
		if len(batch) == 0 {
			return true
		}
		if sortByBlock {
			sort.Slice(batch, func(i, j int) bool {
				if batch[i].Block != batch[j].Block {
					return batch[i].Block < batch[j].Block
				}
				return batch[i].Offset < batch[j].Offset
			})
		}
		out := batch
		batch = make([]access.ItemPointer, 0, h.transferMax)
		h.log.WithField("batch_size", len(out)).WithField("reason", reason).Debug("delegate: flushing batch")
		select {
		case h.batchCh <- out:
			return true
		case <-h.cancelCh:
			h.log.Debug("delegate: cancelled while flushing, dropping batch")
			return false
		}
	}

	for {
		select {
		case <-h.cancelCh:
			h.log.Debug("delegate: producer cancelled")
			return
		case <-h.triggerCh:
			if !flush("trigger") {
				return
			}
			continue
		default:
		}

		tid, ok, err := src.Next()
		if err != nil {
			h.log.WithError(err).Debug("delegate: source returned error, stopping producer")
			select {
			case h.errCh <- err:
			default:
			}
			return
		}
		if !ok {
			flush("eof")
			h.log.Debug("delegate: producer reached end of source")
			return
		}
		batch = append(batch, tid)
		if len(batch) >= h.transferMax {
			if !flush("full") {
				return
			}
		}
	}
}

// Next returns the next item pointer, blocking on the producer if the
// current batch is drained. ok=false (with a nil error) signals the
// producer has finished and every pointer has been delivered.
func (h *Handle) Next() (access.ItemPointer, bool, error) {
	for h.pos >= len(h.current) {
		if h.drained {
			return access.ItemPointer{}, false, nil
		}
		batch, ok := <-h.batchCh
		if !ok {
			h.drained = true
			select {
			case err := <-h.errCh:
				return access.ItemPointer{}, false, err
			default:
				return access.ItemPointer{}, false, nil
			}
		}
		h.current = batch
		h.pos = 0
	}
	tid := h.current[h.pos]
	h.pos++
	return tid, true, nil
}

// End signals the producer to stop and joins it before returning, per
// spec.md §4.5 invariant: "Failure of the consumer ... must still result in
// a joined producer before the connection can be destroyed."
func (h *Handle) End() error {
	close(h.cancelCh)
	<-h.done
	select {
	case err := <-h.errCh:
		return err
	default:
		return nil
	}
}
