package gateway

import (
	"hash/fnv"
	"sync"
)

type fanoutJob struct {
	conns   []*Client
	payload []byte
	skip    string // conn id excluded from delivery ("" = none)
}

// Fanout copies one payload to many send queues on a bounded worker
// pool. Jobs are sharded by key (conversation id or identity id) so all
// fan-outs for one room land on the same worker and keep their order.
type Fanout struct {
	queues    []chan fanoutJob
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 256
	}
	f := &Fanout{queues: make([]chan fanoutJob, workers)}
	for i := range f.queues {
		ch := make(chan fanoutJob, queue)
		f.queues[i] = ch
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			for job := range ch {
				for _, c := range job.conns {
					if job.skip != "" && c.ConnID == job.skip {
						continue
					}
					// Enqueue never blocks; a slow client only loses
					// its own copy.
					c.Enqueue(job.payload)
				}
			}
		}()
	}
	return f
}

// Broadcast queues a delivery to every listed connection except skip.
func (f *Fanout) Broadcast(key string, conns []*Client, skip string, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	f.queues[f.shard(key)] <- fanoutJob{conns: conns, payload: payload, skip: skip}
}

func (f *Fanout) shard(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(f.queues)))
}

// Close drains the queues and stops the workers.
func (f *Fanout) Close() {
	f.closeOnce.Do(func() {
		for _, ch := range f.queues {
			close(ch)
		}
	})
	f.wg.Wait()
}
