package repair

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
)

// DefaultSequenceSeed is the counter value assumed when no counter record
// exists yet; the first allocated number is seed+1.
const DefaultSequenceSeed = 1000

// Sequence hands out unique, monotonically increasing ticket numbers. An
// implementation must perform the read-modify-write as one atomic unit so
// two concurrent callers can never observe the same value. On error the
// caller must abort ticket creation; a ticket without a reserved number is
// not permitted.
type Sequence interface {
	Next(ctx context.Context) (int64, error)
}

// MemorySequence is the in-process implementation. The mutex is the
// isolation boundary the production backend provides with a single-statement
// upsert.
type MemorySequence struct {
	mu   sync.Mutex
	last int64
}

func NewMemorySequence() *MemorySequence {
	return &MemorySequence{last: DefaultSequenceSeed}
}

// NewMemorySequenceAt seeds the counter at an explicit value, for tests and
// for restoring a deployment's last-issued number.
func NewMemorySequenceAt(last int64) *MemorySequence {
	return &MemorySequence{last: last}
}

func (s *MemorySequence) Next(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last, nil
}

// ComposeTicketID builds the human-readable ticket code:
// branch prefix, allocated number, random 3-digit suffix.
func ComposeTicketID(branch string, num int64) string {
	return fmt.Sprintf("%s%d%03d", branch, num, rand.IntN(1000))
}
