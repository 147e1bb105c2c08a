package worker

import (
	"sync"

	"github.com/pingcap-incubator/tinycol/log"
)

type TaskStop struct{}

type Task interface{}

// Worker runs tasks sent to it one at a time on its own goroutine.
type Worker struct {
	name     string
	sender   chan<- Task
	receiver <-chan Task
	wg       *sync.WaitGroup
}

type TaskHandler interface {
	Handle(t Task)
}

type Starter interface {
	Start()
}

func (w *Worker) Start(handler TaskHandler) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if s, ok := handler.(Starter); ok {
			s.Start()
		}
		for {
			task := <-w.receiver
			if _, ok := task.(TaskStop); ok {
				log.Debugf("worker %s stopped", w.name)
				return
			}
			handler.Handle(task)
		}
	}()
}

func (w *Worker) Sender() chan<- Task {
	return w.sender
}

// TrySend queues t without blocking and reports whether it was accepted.
func (w *Worker) TrySend(t Task) bool {
	select {
	case w.sender <- t:
		return true
	default:
		return false
	}
}

func (w *Worker) Stop() {
	w.sender <- TaskStop{}
}

func (w *Worker) Name() string {
	return w.name
}

const defaultWorkerCapacity = 128

func NewWorker(name string, wg *sync.WaitGroup) *Worker {
	ch := make(chan Task, defaultWorkerCapacity)
	return &Worker{
		sender:   (chan<- Task)(ch),
		receiver: (<-chan Task)(ch),
		name:     name,
		wg:       wg,
	}
}
