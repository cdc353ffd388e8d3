//go:build tools

// Package cad_lab pins mockgen so that `go generate ./...` regenerates the
// mocks with the version recorded in go.mod.
package cad_lab

import (
	_ "go.uber.org/mock/mockgen"
)
