//go:build !cgo
// +build !cgo

package ldmatrix

import (
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"
