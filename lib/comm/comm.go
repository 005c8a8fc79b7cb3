/*package comm contains the point-to-point transport that the exchange
engines are written against, along with an in-process implementation used
for tests and single-node runs.

The engines only ever talk to the fixed pair of neighbor ranks that the
decomposition resolves for each logical direction, and the only blocking
calls a rank makes are Send, Recv, and AllReduceMaxInt. An MPI-backed
implementation slots in behind the same interface; it would exchange byte
counts ahead of each payload the way the buffer layouts already assume.*/
package comm

import (
	"fmt"
	"sync"
)

// Transport is a rank's handle on the message layer.
type Transport interface {
	// Rank returns this rank's id and Ranks the total number of ranks.
	Rank() int
	Ranks() int
	// Send delivers b to rank dst. b must not be modified until the matching
	// Recv on dst has returned.
	Send(dst int, b []byte) error
	// Recv blocks until a message from rank src arrives and returns it.
	Recv(src int) ([]byte, error)
	// AllReduceMaxInt blocks until every rank has contributed a value and
	// returns the maximum over all of them. Every rank must call it the same
	// number of times.
	AllReduceMaxInt(x int) (int, error)
}

// SendRecv sends b to dst and then receives a message from src. The send is
// posted before the receive, so a ring of ranks calling SendRecv in lockstep
// cannot deadlock.
func SendRecv(t Transport, dst, src int, b []byte) ([]byte, error) {
	if err := t.Send(dst, b); err != nil {
		return nil, err
	}
	return t.Recv(src)
}

// Mesh is an in-process message layer connecting n ranks that live in the
// same process, one goroutine per rank.
type Mesh struct {
	n  int
	ch [][]chan []byte

	mu     sync.Mutex
	redVal int
	redN   int
	redCh  chan int
}

// NewMesh creates a message layer connecting n ranks.
func NewMesh(n int) (*Mesh, error) {
	if n < 1 {
		return nil, fmt.Errorf("A mesh needs at least one rank, but %d were requested.", n)
	}

	ch := make([][]chan []byte, n)
	for src := range ch {
		ch[src] = make([]chan []byte, n)
		for dst := range ch[src] {
			ch[src][dst] = make(chan []byte, 16)
		}
	}
	return &Mesh{n: n, ch: ch}, nil
}

// Transport returns rank's handle on the mesh.
func (m *Mesh) Transport(rank int) (Transport, error) {
	if rank < 0 || rank >= m.n {
		return nil, fmt.Errorf("Rank %d requested from a mesh with %d ranks.", rank, m.n)
	}
	return &meshRank{m, rank}, nil
}

type meshRank struct {
	m    *Mesh
	rank int
}

func (r *meshRank) Rank() int  { return r.rank }
func (r *meshRank) Ranks() int { return r.m.n }

func (r *meshRank) Send(dst int, b []byte) error {
	if dst < 0 || dst >= r.m.n {
		return fmt.Errorf("Rank %d sent to rank %d, but the mesh only has %d ranks.", r.rank, dst, r.m.n)
	}
	// Receivers keep the slice, so the sender's buffer stays reusable.
	msg := make([]byte, len(b))
	copy(msg, b)
	r.m.ch[r.rank][dst] <- msg
	return nil
}

func (r *meshRank) Recv(src int) ([]byte, error) {
	if src < 0 || src >= r.m.n {
		return nil, fmt.Errorf("Rank %d received from rank %d, but the mesh only has %d ranks.", r.rank, src, r.m.n)
	}
	return <-r.m.ch[src][r.rank], nil
}

func (r *meshRank) AllReduceMaxInt(x int) (int, error) {
	m := r.m

	m.mu.Lock()
	if m.redN == 0 {
		m.redVal = x
		m.redCh = make(chan int, m.n)
	} else if x > m.redVal {
		m.redVal = x
	}
	m.redN++
	out := m.redCh
	if m.redN == m.n {
		for i := 0; i < m.n; i++ {
			out <- m.redVal
		}
		m.redN = 0
	}
	m.mu.Unlock()

	return <-out, nil
}
