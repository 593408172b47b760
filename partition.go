package main

import "fmt"

// Partition is the index range one worker owns. To is inclusive, so an
// empty partition has To == From-1.
type Partition struct {
	Worker int `json:"worker"`
	From   int `json:"from"`
	To     int `json:"to"`
}

// Len returns the number of indices in p.
func (p Partition) Len() int {
	if p.To < p.From {
		return 0
	}
	return p.To - p.From + 1
}

// Empty reports whether p owns no index.
func (p Partition) Empty() bool {
	return p.Len() == 0
}

func (p Partition) String() string {
	return fmt.Sprintf("worker %d [%d, %d]", p.Worker, p.From, p.To)
}

// ManualPartition computes the range worker tid of numWorkers owns under
// the hand-written rule
//
//	from = (n/W)*tid
//	to   = (n/W)*(tid+1) - 1
//
// with the last worker's to stretched to n-1 so the remainder is never
// dropped. When W > n every worker but the last is empty.
func ManualPartition(n, numWorkers, tid int) Partition {
	chunk := n / numWorkers
	p := Partition{
		Worker: tid,
		From:   chunk * tid,
		To:     chunk*(tid+1) - 1,
	}
	if tid == numWorkers-1 {
		p.To = n - 1
	}
	if p.To < p.From {
		p.To = p.From - 1
	}
	return p
}

// StaticPartition computes the block a static work-sharing loop assigns to
// worker tid: the first n mod W workers receive one extra iteration.
func StaticPartition(n, numWorkers, tid int) Partition {
	q, r := n/numWorkers, n%numWorkers
	var from, size int
	if tid < r {
		size = q + 1
		from = tid * size
	} else {
		size = q
		from = r*(q+1) + (tid-r)*q
	}
	return Partition{Worker: tid, From: from, To: from + size - 1}
}

// ManualPartitions returns every worker's ManualPartition, in worker order.
func ManualPartitions(n, numWorkers int) ([]Partition, error) {
	return partitionAll(n, numWorkers, ManualPartition)
}

// StaticPartitions returns every worker's StaticPartition, in worker order.
func StaticPartitions(n, numWorkers int) ([]Partition, error) {
	return partitionAll(n, numWorkers, StaticPartition)
}

func partitionAll(n, numWorkers int, rule func(n, w, tid int) Partition) ([]Partition, error) {
	if err := checkShape(n, numWorkers); err != nil {
		return nil, err
	}
	parts := make([]Partition, numWorkers)
	for tid := range parts {
		parts[tid] = rule(n, numWorkers, tid)
	}
	return parts, nil
}

// chunkPartition returns chunk k of size chunk over [0, n), clipped at n.
func chunkPartition(n, chunk, k, worker int) Partition {
	from := k * chunk
	to := from + chunk - 1
	if to > n-1 {
		to = n - 1
	}
	return Partition{Worker: worker, From: from, To: to}
}

func numChunks(n, chunk int) int {
	return (n + chunk - 1) / chunk
}

func checkShape(n, numWorkers int) error {
	if numWorkers <= 0 {
		return fmt.Errorf("worker count must be positive, got %d: %w", numWorkers, ErrInvalidConfiguration)
	}
	if n < 0 {
		return fmt.Errorf("length must not be negative, got %d: %w", n, ErrInvalidConfiguration)
	}
	return nil
}
