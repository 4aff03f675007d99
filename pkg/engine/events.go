package engine

import (
	"sync"

	"github.com/rhuss/openresearch/pkg/api"
)

// subscriberBuffer is the number of snapshots a slow subscriber may lag
// behind before older snapshots are dropped.
const subscriberBuffer = 16

// broker fans task snapshots out to subscribers. Publishing never blocks:
// a full subscriber channel loses its oldest snapshot.
type broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan *api.Task
}

func newBroker() *broker {
	return &broker{subs: make(map[string]map[int]chan *api.Task)}
}

func (b *broker) subscribe(taskID string) (<-chan *api.Task, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan *api.Task, subscriberBuffer)
	if b.subs[taskID] == nil {
		b.subs[taskID] = make(map[int]chan *api.Task)
	}
	b.subs[taskID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.remove(taskID, id) })
	}
}

func (b *broker) remove(taskID string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[taskID]
	ch, ok := subs[id]
	if !ok {
		return
	}
	delete(subs, id)
	close(ch)
	if len(subs) == 0 {
		delete(b.subs, taskID)
	}
}

// publish sends snap to every subscriber of the task. Subscribers of a
// task in a terminal status are closed after delivery.
func (b *broker) publish(snap *api.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[snap.ID]
	for _, ch := range subs {
		select {
		case ch <- snap.Clone():
		default:
			// Drop the oldest snapshot to make room for the newest.
			select {
			case <-ch:
			default:
			}
			ch <- snap.Clone()
		}
	}
	if snap.Status.IsTerminal() {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, snap.ID)
	}
}
