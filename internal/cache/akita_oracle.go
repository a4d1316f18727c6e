package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// akitaOracle is an independent tag-directory built on
// github.com/sarchlab/akita/v4/mem/cache, used by the pipeline's tests as
// a second, trusted implementation of plain LRU hit/miss bookkeeping to
// differentially check Cache's own tag-check stage. It has no role in the
// simulated pipeline itself; the pipeline's tag/way state is the plain
// []Block slice in Cache, since the pipeline's hit/miss decision has to
// interleave with the MSHR and the pluggable replacement shim in ways
// akitacache.DirectoryImpl's own FindVictim does not expose.
type akitaOracle struct {
	dir       *akitacache.DirectoryImpl
	blockSize uint64
}

func newAkitaOracle(numSets, numWays int, blockSize uint64) *akitaOracle {
	return &akitaOracle{
		dir:       akitacache.NewDirectory(numSets, numWays, int(blockSize), akitacache.NewLRUVictimFinder()),
		blockSize: blockSize,
	}
}

// access looks addr up, installing it on a miss via the directory's own
// LRU victim finder, and reports whether it was a hit.
func (o *akitaOracle) access(addr uint64) bool {
	blockAddr := (addr / o.blockSize) * o.blockSize
	block := o.dir.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		o.dir.Visit(block)
		return true
	}
	victim := o.dir.FindVictim(blockAddr)
	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	o.dir.Visit(victim)
	return false
}
