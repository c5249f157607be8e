package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/dag"
)

type chunkJSON struct {
	Hash     dag.Hash    `json:"hash"`
	Data     interface{} `json:"data"`
	Refs     []dag.Hash  `json:"refs"`
	RefCount int         `json:"refcount"`
}

func (c maincmd) get(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var head headFlag
	fs.Var(&head, "head", "get the chunk this head points at")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	var hashes []dag.Hash
	if head.set {
		h, err := c.getHead(head.name)
		if err != nil {
			return err
		}
		if h.IsZero() {
			return errors.Wrapf(dag.ErrNotFound, "head %q", head.name)
		}
		hashes = append(hashes, h)
	}
	for _, arg := range fs.Args() {
		h, err := dag.ParseHash(arg)
		if err != nil {
			return err
		}
		hashes = append(hashes, h)
	}
	if len(hashes) == 0 {
		return errors.New("must supply -head or at least one hash")
	}

	results := make([]chunkJSON, len(hashes))

	g, gctx := errgroup.WithContext(ctx)
	for i, h := range hashes {
		i, h := i, h
		g.Go(func() error {
			return c.s.View(gctx, func(r *dag.Read) error {
				chunk, err := r.GetChunk(gctx, h)
				if err != nil {
					return errors.Wrapf(err, "getting chunk %s", h)
				}
				n, err := r.RefCount(gctx, h)
				if err != nil {
					return err
				}
				results[i] = chunkJSON{
					Hash:     chunk.Hash,
					Data:     dag.Native(chunk.Data),
					Refs:     chunk.Refs,
					RefCount: n,
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			return errors.Wrap(err, "writing output")
		}
	}
	return nil
}
