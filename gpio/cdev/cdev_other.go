//go:build !linux

// Package cdev drives GPIO lines through the Linux character device.  On
// other systems New always fails, so board identification falls through to
// the next backend.
package cdev

import (
	"github.com/LearningToPi/sbc-gpio/errcode"
	"github.com/LearningToPi/sbc-gpio/gpio"
)

// Backend is unavailable off Linux.
type Backend struct{}

// New always fails with errcode.BackendUnavailable.
func New() (*Backend, error) {
	return nil, errcode.New(errcode.BackendUnavailable, "cdev", "gpio character device requires linux")
}

func (b *Backend) Kind() gpio.BackendKind { return gpio.KindCdev }

func (b *Backend) Chips() []string { return nil }

func (b *Backend) OpenOutput(gpio.Request) (gpio.BackendLine, error) {
	return nil, errcode.New(errcode.BackendUnavailable, "cdev", "gpio character device requires linux")
}

func (b *Backend) OpenInput(gpio.Request) (gpio.BackendLine, error) {
	return nil, errcode.New(errcode.BackendUnavailable, "cdev", "gpio character device requires linux")
}
