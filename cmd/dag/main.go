// Command dag is a command-line interface to a chunk store.
package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/bobg/subcmd"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bobg/dag"
	_ "github.com/bobg/dag/store/badger"
	_ "github.com/bobg/dag/store/file"
	_ "github.com/bobg/dag/store/logging"
	_ "github.com/bobg/dag/store/mem"
	_ "github.com/bobg/dag/store/pg"
	_ "github.com/bobg/dag/store/sqlite3"
)

type maincmd struct {
	s      *dag.Store
	kv     dag.KV
	hashFn dag.HashFunc
	log    logrus.FieldLogger
	stdin  io.Reader

	// heads caches head lookups for the duration of a command.
	heads *dag.Memo
}

func main() {
	config := flag.String("config", "dagconf.json", "path to config file (.json, .yaml, or .yml)")
	flag.Parse()

	log := logrus.StandardLogger()

	if *config == "" {
		log.Fatal("Config value not set")
	}

	ctx := context.Background()

	conf, err := loadConfig(*config)
	if err != nil {
		log.Fatal(err)
	}
	c, err := newMaincmd(ctx, conf, log)
	if err != nil {
		log.Fatal(err)
	}
	defer c.s.Close()

	err = subcmd.Run(ctx, c, flag.Args())
	if err != nil {
		c.s.Close()
		log.Fatal(err)
	}
}

func newMaincmd(ctx context.Context, conf *config, log *logrus.Logger) (maincmd, error) {
	log.SetLevel(conf.LogLevel)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetOutput(os.Stderr)

	kv, err := conf.createKV(ctx)
	if err != nil {
		return maincmd{}, errors.Wrapf(err, "creating %s-type store", conf.Type)
	}
	s, err := dag.New(kv, dag.WithLogger(log), dag.WithCacheSize(conf.CacheSize))
	if err != nil {
		kv.Close()
		return maincmd{}, errors.Wrap(err, "creating store")
	}

	c := maincmd{
		s:      s,
		kv:     kv,
		hashFn: conf.HashFn,
		log:    log,
		stdin:  os.Stdin,
	}
	c.heads = dag.NewMemo(func(name string) (interface{}, error) {
		var h dag.Hash
		err := s.View(ctx, func(r *dag.Read) error {
			var err error
			h, err = r.GetHead(ctx, name)
			return err
		})
		return h, err
	})
	return c, nil
}

func (c maincmd) Subcmds() map[string]subcmd.Subcmd {
	return map[string]subcmd.Subcmd{
		"fsck":     c.fsck,
		"gc":       c.gc,
		"get":      c.get,
		"head":     c.head,
		"heads":    c.listHeads,
		"keys":     c.keys,
		"put":      c.put,
		"rm-head":  c.rmHead,
		"set-head": c.setHead,
		"sync":     c.sync,
	}
}

// getHead resolves a head name, remembering the answer.
func (c maincmd) getHead(name string) (dag.Hash, error) {
	h, err := c.heads.Get(name)
	if err != nil {
		return dag.Zero, errors.Wrapf(err, "getting head %s", name)
	}
	return h.(dag.Hash), nil
}

const maxTries = 5

// moveHead points the named head at newHash,
// calling f first in the same transaction if f is non-nil.
// If another writer moves the head first,
// it rereads the head and tries again.
func (c maincmd) moveHead(ctx context.Context, name string, newHash dag.Hash, f func(*dag.Write) error) error {
	for try := 1; ; try++ {
		old, err := c.getHead(name)
		if err != nil {
			return err
		}
		err = c.s.Update(ctx, func(w *dag.Write) error {
			if f != nil {
				if err := f(w); err != nil {
					return err
				}
			}
			return w.SetHead(ctx, name, newHash, old)
		})
		c.heads.Forget(name)
		if dag.IsRetryable(err) && try < maxTries {
			c.log.WithError(err).WithField("try", try).Warn("retrying")
			continue
		}
		return errors.Wrapf(err, "setting head %s", name)
	}
}
