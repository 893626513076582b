package requestid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const prefix = "VTU"

// Generator issues purchase references unique within the provider's
// namespace. The reference is issued exactly once per purchase attempt;
// reusing it on retries is the caller's job, the generator has no
// retry-awareness.
type Generator struct {
	now    func() time.Time
	newTag func() string
}

func New() *Generator {
	return &Generator{
		now:    time.Now,
		newTag: func() string { return uuid.NewString()[:8] },
	}
}

// NewWithSource allows tests to pin the time and tag components
func NewWithSource(now func() time.Time, newTag func() string) *Generator {
	return &Generator{now: now, newTag: newTag}
}

// Generate returns reference like 'VTU-AIRTIME-1756710245123-9f3c01aa'
func (g *Generator) Generate(kind string) string {
	return fmt.Sprintf("%s-%s-%d-%s", prefix, strings.ToUpper(kind), g.now().UnixMilli(), g.newTag())
}
