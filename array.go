package main

import (
	"fmt"
	"math/rand/v2"
)

// NewArray allocates an array of n elements, all set to 1, the fill every
// timing trial starts from.
func NewArray(n int) ([]int64, error) {
	if n < 0 {
		return nil, fmt.Errorf("length must not be negative, got %d: %w", n, ErrInvalidConfiguration)
	}
	data := make([]int64, n)
	Fill(data, 1)
	return data, nil
}

// Fill sets every element of data to v.
func Fill(data []int64, v int64) {
	for i := range data {
		data[i] = v
	}
}

// FillRandom sets every element of data to a pseudo-random value in
// [1, maxValue], deterministic for a given seed.
func FillRandom(data []int64, seed uint64, maxValue int64) {
	if maxValue < 1 {
		maxValue = 1
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i := range data {
		data[i] = rng.Int64N(maxValue) + 1
	}
}
