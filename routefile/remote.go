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

package routefile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	DefaultMaxTries    = 5

	maxRouteFileSize = 16 << 20
)

// RemoteOptions of downloading remote route files.
type RemoteOptions struct {
	// HTTPTimeout of a single download attempt.
	HTTPTimeout time.Duration

	// MaxTries is the number of download attempts. The failures with a
	// 4xx status are not retried.
	MaxTries uint

	// InitialInterval between the attempts, growing exponentially.
	InitialInterval time.Duration

	// Client used for the downloads. Defaults to a client with
	// HTTPTimeout.
	Client *http.Client
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Open loads a route file from a local path, or downloads it when the
// location is an http or https URL.
func Open(ctx context.Context, location string, o RemoteOptions) (*File, error) {
	if isRemote(location) {
		return OpenRemote(ctx, location, o)
	}

	return Load(location)
}

// OpenRemote downloads and parses a remote route file, retrying the
// failed downloads with exponential backoff.
func OpenRemote(ctx context.Context, url string, o RemoteOptions) (*File, error) {
	client := o.Client
	if client == nil {
		timeout := o.HTTPTimeout
		if timeout <= 0 {
			timeout = DefaultHTTPTimeout
		}

		client = &http.Client{Timeout: timeout}
	}

	maxTries := o.MaxTries
	if maxTries == 0 {
		maxTries = DefaultMaxTries
	}

	b := backoff.NewExponentialBackOff()
	if o.InitialInterval > 0 {
		b.InitialInterval = o.InitialInterval
	}

	data, err := backoff.Retry(ctx, func() ([]byte, error) {
		return download(ctx, client, url)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warnf("failed to download route file %s, retrying in %v: %v", url, next, err)
		}),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to download route file %s: %w", url, err)
	}

	return Parse(data)
}

func download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	rsp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	defer rsp.Body.Close()

	if rsp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status: %s", rsp.Status)
		if rsp.StatusCode >= 400 && rsp.StatusCode < 500 && rsp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}

		return nil, err
	}

	return io.ReadAll(io.LimitReader(rsp.Body, maxRouteFileSize))
}
