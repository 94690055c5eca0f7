// Copyright 2015 Zalando SE
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package flowid

import (
	"fmt"
	"io"
	"math/rand/v2"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid"
)

const (
	flowIDAlphabet  = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ-+"
	alphabetBitMask = 63
	MaxLength       = 64
	MinLength       = 8
	defaultLen      = 16
)

var (
	ErrInvalidLen = fmt.Errorf("invalid length, must be between %d and %d", MinLength, MaxLength)
	flowIDRegex   = regexp.MustCompile(`^[0-9a-zA-Z+-]+$`)
)

// Generator creates flow ids.
type Generator interface {
	Generate() (string, error)

	// IsValid tells whether an incoming flow id can be reused.
	IsValid(string) bool
}

type standardGenerator struct {
	length int
}

// NewStandardGenerator creates a generator of random flow ids of length
// l. Every random 64 bit integer gives 10 characters, 6 bits each. It is
// safe for concurrent use.
func NewStandardGenerator(l int) (Generator, error) {
	if l < MinLength || l > MaxLength {
		return nil, ErrInvalidLen
	}

	return &standardGenerator{length: l}, nil
}

func (g *standardGenerator) Generate() (string, error) {
	u := make([]byte, g.length)
	for i := 0; i < g.length; i += 10 {
		b := rand.Int64() // #nosec
		for e := 0; e < 10 && i+e < g.length; e++ {
			c := byte(b>>uint(6*e)) & alphabetBitMask
			u[i+e] = flowIDAlphabet[c]
		}
	}

	return string(u), nil
}

func (g *standardGenerator) IsValid(id string) bool {
	return len(id) >= MinLength && len(id) <= MaxLength && flowIDRegex.MatchString(id)
}

type ulidGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULIDGenerator creates a generator of ULIDs with a monotonic entropy
// source. It is safe for concurrent use.
func NewULIDGenerator() Generator {
	r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)) // #nosec
	return NewULIDGeneratorWithEntropy(ulid.Monotonic(readerFunc(func(p []byte) (int, error) {
		for i := range p {
			p[i] = byte(r.Uint32())
		}

		return len(p), nil
	}), 0))
}

// NewULIDGeneratorWithEntropy creates a generator of ULIDs with the
// entropy source r.
func NewULIDGeneratorWithEntropy(r io.Reader) Generator {
	return &ulidGenerator{entropy: r}
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

func (g *ulidGenerator) Generate() (string, error) {
	g.mu.Lock()
	id, err := ulid.New(ulid.Now(), g.entropy)
	g.mu.Unlock()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (g *ulidGenerator) IsValid(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

type uuidGenerator struct{}

// NewUUIDGenerator creates a generator of version 4 UUIDs.
func NewUUIDGenerator() Generator { return uuidGenerator{} }

func (uuidGenerator) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (uuidGenerator) IsValid(id string) bool {
	return uuid.Validate(id) == nil
}
