package generators

import "github.com/reusee/infsite/syncs"

// GenerationSlot admits at most one upstream generation per process,
// whatever page or prompt it is for.
type GenerationSlot struct {
	syncs.Semaphore
}

func (Module) GenerationSlot() GenerationSlot {
	return GenerationSlot{
		Semaphore: syncs.NewSemaphore(1),
	}
}
