package workflow

import (
	"fmt"
	"sync/atomic"
	"time"
)

var idSeq atomic.Uint64

// newID builds a prefixed identifier. The sequence suffix keeps ids unique
// when several records are created within the same nanosecond tick.
func newID(prefix string) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, time.Now().UnixNano(), idSeq.Add(1)%10000)
}
