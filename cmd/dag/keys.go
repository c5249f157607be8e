package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bobg/dag"
)

// keys lists the raw keys of the underlying store,
// with what each one holds.
func (c maincmd) keys(ctx context.Context, fs *flag.FlagSet, args []string) error {
	prefix := fs.String("prefix", "", "list only keys with this prefix")
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	return c.kv.View(ctx, func(tx dag.ReadTx) error {
		return tx.Scan(ctx, *prefix, func(key string, val []byte) error {
			pk, err := dag.ParseKey(key)
			if err != nil {
				fmt.Printf("%s ERROR %s\n", key, err)
				return nil
			}
			fmt.Printf("%s %s %d\n", key, pk.Kind, len(val))
			return nil
		})
	})
}
