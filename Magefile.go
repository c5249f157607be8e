//go:build mage
// +build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

func Build() error {
	return sh.Run(mg.GoCmd(), "build", "./...")
}

func Test() error {
	args := []string{"test"}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	args = append(args, "./...")
	return sh.RunV(mg.GoCmd(), args...)
}

// TestPG runs the tests including the Postgresql backend,
// which are skipped unless DAG_PG_TESTING_CONN is set.
func TestPG() error {
	if os.Getenv("DAG_PG_TESTING_CONN") == "" {
		return mg.Fatal(1, "set DAG_PG_TESTING_CONN to a Postgresql connection string")
	}
	return sh.RunV(mg.GoCmd(), "test", "./store/pg/...")
}

func Vet() error {
	return sh.RunV(mg.GoCmd(), "vet", "./...")
}

func Lint() error {
	return sh.RunV("staticcheck", "./...")
}

func Check() {
	mg.SerialDeps(Vet, Lint, Test)
}
