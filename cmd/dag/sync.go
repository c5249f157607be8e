package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bobg/dag/store"
)

// sync copies the store to the store described by another config file,
// replacing that store's contents.
func (c maincmd) sync(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 1 {
		return errors.New("usage: sync DSTCONFIG")
	}

	conf, err := loadConfig(fs.Arg(0))
	if err != nil {
		return err
	}
	dst, err := conf.createKV(ctx)
	if err != nil {
		return errors.Wrapf(err, "creating %s-type store", conf.Type)
	}
	defer dst.Close()

	written, deleted, err := store.Sync(ctx, dst, c.kv)
	if err != nil {
		return errors.Wrap(err, "syncing")
	}
	c.log.WithFields(logrus.Fields{"written": written, "deleted": deleted}).Info("synced")
	return nil
}
