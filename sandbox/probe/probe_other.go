// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package probe

func platformBattery() []Probe {
	return nil
}
