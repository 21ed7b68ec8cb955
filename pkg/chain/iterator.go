package chain

import (
	"context"

	"github.com/pkg/errors"
)

// Iterator walks the chain from newest to oldest block
type Iterator struct {
	bc      *Blockchain
	current string
}

// Iterator starts at the current tip
func (bc *Blockchain) Iterator(ctx context.Context) (*Iterator, error) {
	tip, err := bc.Tip(ctx)
	if err != nil {
		return nil, err
	}

	return &Iterator{bc: bc, current: tip}, nil
}

// Next returns the current block and steps to its parent. A nil block means
// the walk reached the zero hash or a block missing from the store.
func (it *Iterator) Next(ctx context.Context) (*Block, error) {
	if it.current == "" || it.current == ZeroHash {
		return nil, nil
	}

	b, err := it.bc.GetBlock(ctx, it.current)
	if err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			it.current = ""
			return nil, nil
		}
		return nil, err
	}

	it.current = b.PrevBlockHash

	return b, nil
}

// ForEachBlock calls fn for each block from the tip back to genesis until fn
// returns false.
func (bc *Blockchain) ForEachBlock(ctx context.Context, fn func(*Block) (bool, error)) error {
	it, err := bc.Iterator(ctx)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		b, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if b == nil {
			return nil
		}

		more, err := fn(b)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}
