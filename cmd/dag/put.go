package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/bobg/dag"
)

// hashList is a flag.Value collecting repeated hash flags.
type hashList []dag.Hash

func (l *hashList) String() string {
	var strs []string
	for _, h := range *l {
		strs = append(strs, string(h))
	}
	return strings.Join(strs, ",")
}

func (l *hashList) Set(s string) error {
	h, err := dag.ParseHash(s)
	if err != nil {
		return err
	}
	*l = append(*l, h)
	return nil
}

// headFlag is a flag.Value naming a head.
// It records whether the flag appeared at all,
// since the empty string is itself a head name.
type headFlag struct {
	name string
	set  bool
}

func (f *headFlag) String() string {
	return f.name
}

func (f *headFlag) Set(s string) error {
	f.name, f.set = s, true
	return nil
}

func (c maincmd) put(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var refs hashList
	fs.Var(&refs, "ref", "hash of a chunk the new chunk refers to (repeatable)")
	var head headFlag
	fs.Var(&head, "head", "head to point at the new chunk")
	stage := fs.Bool("stage", false, "store the chunk without attaching it to a head")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	if head.set == *stage {
		return errors.New("must supply one of -head or -stage")
	}

	var x interface{}
	if err := json.NewDecoder(c.stdin).Decode(&x); err != nil {
		return errors.Wrap(err, "decoding JSON from stdin")
	}
	data, err := dag.ValueOf(x)
	if err != nil {
		return errors.Wrap(err, "converting input")
	}

	chunk := dag.NewChunk(data, refs, c.hashFn)
	putChunk := func(w *dag.Write) error {
		return w.PutChunk(ctx, chunk)
	}

	if *stage {
		err = c.s.Update(ctx, putChunk)
	} else {
		err = c.moveHead(ctx, head.name, chunk.Hash, putChunk)
	}
	if err != nil {
		return errors.Wrapf(err, "storing chunk %s", chunk.Hash)
	}

	fmt.Println(chunk.Hash)
	return nil
}
