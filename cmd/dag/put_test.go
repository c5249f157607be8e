package main

import (
	"context"
	"flag"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/bobg/dag"
)

func TestHeadFlag(t *testing.T) {
	cases := []struct {
		args    []string
		wantSet bool
	}{
		{args: nil, wantSet: false},
		{args: []string{"-head", ""}, wantSet: true},
		{args: []string{"-head=main"}, wantSet: true},
	}
	for _, c := range cases {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		var head headFlag
		fs.Var(&head, "head", "")
		if err := fs.Parse(c.args); err != nil {
			t.Fatal(err)
		}
		if head.set != c.wantSet {
			t.Errorf("%v: got set %v, want %v", c.args, head.set, c.wantSet)
		}
	}
}

func TestEmptyHeadName(t *testing.T) {
	conf, err := parseConfig(map[string]interface{}{"type": "mem"})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	c, err := newMaincmd(ctx, conf, logrus.New())
	if err != nil {
		t.Fatal(err)
	}
	defer c.s.Close()

	c.stdin = strings.NewReader(`{"x": 1}`)
	err = c.put(ctx, flag.NewFlagSet("put", flag.ContinueOnError), []string{"-head", ""})
	if err != nil {
		t.Fatal(err)
	}

	want := dag.NewChunk(dag.Map{"x": dag.Number(1)}, nil, c.hashFn)
	h, err := c.getHead("")
	if err != nil {
		t.Fatal(err)
	}
	if h != want.Hash {
		t.Errorf("got head %s, want %s", h, want.Hash)
	}
	if h, err = c.getHead("main"); err != nil {
		t.Fatal(err)
	}
	if !h.IsZero() {
		t.Errorf("got head %s for main, want none", h)
	}

	err = c.get(ctx, flag.NewFlagSet("get", flag.ContinueOnError), []string{"-head", ""})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPutArgs(t *testing.T) {
	conf, err := parseConfig(map[string]interface{}{"type": "mem"})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	c, err := newMaincmd(ctx, conf, logrus.New())
	if err != nil {
		t.Fatal(err)
	}
	defer c.s.Close()

	cases := [][]string{
		nil,
		{"-head", "", "-stage"},
		{"-head", "main", "-stage"},
	}
	for _, args := range cases {
		c.stdin = strings.NewReader(`"x"`)
		if err := c.put(ctx, flag.NewFlagSet("put", flag.ContinueOnError), args); err == nil {
			t.Errorf("%v: got no error", args)
		}
	}

	c.stdin = strings.NewReader(`"x"`)
	if err := c.put(ctx, flag.NewFlagSet("put", flag.ContinueOnError), []string{"-stage"}); err != nil {
		t.Fatal(err)
	}
}
