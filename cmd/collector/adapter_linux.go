package main

import "tinygo.org/x/bluetooth"

// newAdapter selects a BlueZ controller such as "hci1".
func newAdapter(id string) *bluetooth.Adapter {
	if id == "" {
		return bluetooth.DefaultAdapter
	}
	return bluetooth.NewAdapter(id)
}
