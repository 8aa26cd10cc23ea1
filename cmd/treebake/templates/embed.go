// Package templates provides the tree documents written by treebake init.
package templates

import _ "embed"

// Birch is a small birch with a trunk, limbs and cross leaves.
//
//go:embed birch.yaml
var Birch string
