package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bobg/dag"
	"github.com/bobg/dag/gc"
)

func (c maincmd) fsck(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	var rep *gc.Report
	err = c.s.View(ctx, func(r *dag.Read) error {
		rep, err = gc.Verify(ctx, r)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "verifying store")
	}

	for _, m := range rep.Mismatches {
		fmt.Printf("count mismatch: %s stored %d, expected %d\n", m.Hash, m.Stored, m.Expected)
	}
	for _, h := range rep.Unreachable {
		fmt.Printf("unreachable counted chunk: %s\n", h)
	}
	for _, d := range rep.Dangling {
		if d.From.IsZero() {
			fmt.Printf("dangling head: %s -> %s\n", d.Head, d.To)
		} else {
			fmt.Printf("dangling ref: %s -> %s\n", d.From, d.To)
		}
	}
	fmt.Printf("%d reachable chunks, %d uncounted\n", rep.Reachable, len(rep.Uncounted))

	if !rep.OK() {
		return errors.Wrap(dag.ErrInconsistent, "fsck found problems")
	}
	return nil
}

func (c maincmd) gc(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	n, err := gc.Run(ctx, c.s, c.log)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d uncounted chunks\n", n)
	return nil
}
