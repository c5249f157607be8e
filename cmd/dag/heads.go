package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bobg/dag"
)

func (c maincmd) head(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 1 {
		return errors.New("usage: head NAME")
	}

	h, err := c.getHead(fs.Arg(0))
	if err != nil {
		return err
	}
	if h.IsZero() {
		return errors.Wrapf(dag.ErrNotFound, "head %s", fs.Arg(0))
	}
	fmt.Println(h)
	return nil
}

func (c maincmd) listHeads(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	return c.s.View(ctx, func(r *dag.Read) error {
		return r.ListHeads(ctx, func(name string, h dag.Hash) error {
			fmt.Printf("%s %s\n", h, name)
			return nil
		})
	})
}

func (c maincmd) setHead(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 2 {
		return errors.New("usage: set-head NAME HASH")
	}

	h, err := dag.ParseHash(fs.Arg(1))
	if err != nil {
		return err
	}
	return c.moveHead(ctx, fs.Arg(0), h, nil)
}

func (c maincmd) rmHead(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 1 {
		return errors.New("usage: rm-head NAME")
	}

	name := fs.Arg(0)
	h, err := c.getHead(name)
	if err != nil {
		return err
	}
	if h.IsZero() {
		return errors.Wrapf(dag.ErrNotFound, "head %s", name)
	}
	return c.moveHead(ctx, name, dag.Zero, nil)
}
