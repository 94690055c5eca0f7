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

package engines

import (
	"fmt"
	"time"
)

// The arguments of the engines come either from YAML route files, where
// numbers are float64, or from code.

func StringArg(x any) (string, error) {
	if s, ok := x.(string); ok {
		return s, nil
	}

	return "", fmt.Errorf("%w: %v is not a string", ErrInvalidEngineParameters, x)
}

func Float64Arg(x any) (float64, error) {
	switch f := x.(type) {
	case float64:
		return f, nil
	case int:
		return float64(f), nil
	}

	return 0, fmt.Errorf("%w: %v is not a float64", ErrInvalidEngineParameters, x)
}

func IntArg(x any) (int, error) {
	switch i := x.(type) {
	case int:
		return i, nil
	case int64:
		return int(i), nil
	case float64:
		ii := int(i)
		if float64(ii) == i {
			return ii, nil
		}
	}

	return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidEngineParameters, x)
}

// DurationArg accepts time.Duration as is, and parses strings with
// time.ParseDuration. Negative durations are invalid.
func DurationArg(x any) (time.Duration, error) {
	var d time.Duration
	switch t := x.(type) {
	case time.Duration:
		d = t
	case string:
		var err error
		d, err = time.ParseDuration(t)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidEngineParameters, err)
		}
	default:
		return 0, fmt.Errorf("%w: %v is not a duration", ErrInvalidEngineParameters, x)
	}

	if d < 0 {
		return 0, fmt.Errorf("%w: duration %v is negative", ErrInvalidEngineParameters, x)
	}

	return d, nil
}

// StringsArg accepts []string, or []any with only strings.
func StringsArg(x any) ([]string, error) {
	switch v := x.(type) {
	case []string:
		return v, nil
	case []any:
		s := make([]string, 0, len(v))
		for _, vi := range v {
			si, err := StringArg(vi)
			if err != nil {
				return nil, err
			}

			s = append(s, si)
		}

		return s, nil
	}

	return nil, fmt.Errorf("%w: %v is not a list of strings", ErrInvalidEngineParameters, x)
}
