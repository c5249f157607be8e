// Package logging implements a dag.KV that delegates everything to a nested KV,
// logging operations as they happen.
package logging

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bobg/dag"
	"github.com/bobg/dag/store"
)

var _ dag.KV = &KV{}

// KV is a dag.KV that logs each operation on a nested KV.
// Successful operations are logged at Debug level,
// failures at Error level.
type KV struct {
	kv  dag.KV
	log logrus.FieldLogger
}

// New produces a new KV wrapping kv.
// If log is nil, the logrus standard logger is used.
func New(kv dag.KV, log logrus.FieldLogger) *KV {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &KV{kv: kv, log: log}
}

// View implements dag.KV.
func (kv *KV) View(ctx context.Context, f func(dag.ReadTx) error) error {
	kv.log.Debug("View begin")
	err := kv.kv.View(ctx, func(tx dag.ReadTx) error {
		return f(&readTx{tx: tx, log: kv.log})
	})
	kv.done("View", err)
	return err
}

// Update implements dag.KV.
func (kv *KV) Update(ctx context.Context, f func(dag.WriteTx) error) error {
	kv.log.Debug("Update begin")
	err := kv.kv.Update(ctx, func(tx dag.WriteTx) error {
		return f(&writeTx{readTx: readTx{tx: tx, log: kv.log}, tx: tx})
	})
	kv.done("Update", err)
	return err
}

func (kv *KV) done(op string, err error) {
	if err != nil {
		kv.log.WithError(err).Errorf("%s end", op)
	} else {
		kv.log.Debugf("%s end", op)
	}
}

// Close implements dag.KV.
func (kv *KV) Close() error {
	err := kv.kv.Close()
	if err != nil {
		kv.log.WithError(err).Error("Close")
	} else {
		kv.log.Debug("Close")
	}
	return err
}

type readTx struct {
	tx  dag.ReadTx
	log logrus.FieldLogger
}

func (t *readTx) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok, err := t.tx.Get(ctx, key)
	if err != nil {
		t.log.WithError(err).WithField("key", key).Error("Get")
	} else {
		t.log.WithFields(logrus.Fields{"key": key, "found": ok, "len": len(val)}).Debug("Get")
	}
	return val, ok, err
}

func (t *readTx) Scan(ctx context.Context, prefix string, f func(string, []byte) error) error {
	t.log.WithField("prefix", prefix).Debug("Scan")
	return t.tx.Scan(ctx, prefix, func(key string, val []byte) error {
		err := f(key, val)
		if err != nil {
			t.log.WithError(err).WithField("key", key).Error("  in Scan")
		} else {
			t.log.WithField("key", key).Debug("  Scan")
		}
		return err
	})
}

type writeTx struct {
	readTx
	tx dag.WriteTx
}

func (t *writeTx) Put(ctx context.Context, key string, val []byte) error {
	err := t.tx.Put(ctx, key, val)
	if err != nil {
		t.log.WithError(err).WithField("key", key).Error("Put")
	} else {
		t.log.WithFields(logrus.Fields{"key": key, "len": len(val)}).Debug("Put")
	}
	return err
}

func (t *writeTx) Delete(ctx context.Context, key string) error {
	err := t.tx.Delete(ctx, key)
	if err != nil {
		t.log.WithError(err).WithField("key", key).Error("Delete")
	} else {
		t.log.WithField("key", key).Debug("Delete")
	}
	return err
}

func init() {
	store.Register("logging", func(ctx context.Context, conf map[string]interface{}) (dag.KV, error) {
		nested, err := store.CreateNested(ctx, conf, "nested")
		if err != nil {
			return nil, errors.Wrap(err, "creating nested store")
		}
		return New(nested, nil), nil
	})
}
