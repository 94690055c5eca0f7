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

package routing

import "context"

type contextKey struct{}

var roseContextKey contextKey

// NewContext returns a new context with the associated request context.
// It does nothing and returns ctx if it already has an associated request
// context.
func NewContext(ctx context.Context, r *Rose) context.Context {
	if _, ok := ctx.Value(roseContextKey).(*Rose); ok {
		return ctx
	}

	return context.WithValue(ctx, roseContextKey, r)
}

// FromContext returns the request context associated with ctx, or nil.
func FromContext(ctx context.Context) *Rose {
	r, _ := ctx.Value(roseContextKey).(*Rose)
	return r
}

// Attribute returns the request scoped attribute of r stored under key.
// When missing, it stores and returns the result of defaultValue.
// defaultValue may be called multiple times but only one result will be
// used as a default value.
func Attribute[V any](r *Rose, key string, defaultValue func() V) V {
	val, ok := r.attributes.Load(key)
	if !ok {
		val = defaultValue()
		val, _ = r.attributes.LoadOrStore(key, val)
	}

	return val.(V)
}
