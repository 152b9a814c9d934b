//go:build !linux

package main

import "tinygo.org/x/bluetooth"

func newAdapter(string) *bluetooth.Adapter {
	return bluetooth.DefaultAdapter
}
