package minesduel

import (
	"github.com/google/uuid"
	"github.com/ifo/sanic"
)

var seeds = sanic.NewWorker7()

// NewToken returns a fresh player capability token.
func NewToken() string {
	return uuid.NewString()
}

// NewSeed returns a board seed that has not been handed out before.
func NewSeed() string {
	return seeds.IDString(seeds.NextID())
}
