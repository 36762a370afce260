//go:build !linux && !darwin

package main

import "github.com/rs/zerolog"

func enableCrashForensics() {}

func logCoreDumpLimits(zerolog.Logger) {}
