// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Command enginectl is a developer convenience CLI over the files an
// engine instance produces during development and debugging: table wire
// dumps (storage.SerializeTo), partition ring descriptors
// (hashinator.Ring.Encode), and ad hoc secondary indexes built over a
// loaded table. It is not part of the production operational surface
// (out of scope per spec.md §1); it is a small debug CLI shipped
// alongside the storage engine for local development.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "enginectl",
		Short: "Inspect table, ring, and index dumps from a development engine",
	}
	root.AddCommand(newDumpCmd())
	root.AddCommand(newRingCmd())
	root.AddCommand(newIndexCmd())
	return root
}
