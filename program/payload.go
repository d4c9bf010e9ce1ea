package program

import (
	"sync"

	"github.com/moratsam/etherscan/pipeline"
)

var payloadPool = sync.Pool{New: func() interface{} { return new(warmPayload) }}

type warmPayload struct {
	arg        string // Selector argument to build.
	cache_path string // Cache file the build used or wrote.
	origin     Origin
	err        error // Failure of this selector only.
}

// Doesn't really clone, the warm pipeline has no broadcast stage.
func (p *warmPayload) Clone() pipeline.Payload {
	return payloadPool.Get().(*warmPayload)
}

func (p *warmPayload) MarkAsProcessed() {
	p.arg = ""
	p.cache_path = ""
	p.origin = OriginSource
	p.err = nil
	payloadPool.Put(p)
}
