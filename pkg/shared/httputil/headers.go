package httputil

import (
	"maps"
	"strings"

	"github.com/openai/openai-go/v3/option"
)

// MergeHeaders merges override headers into base, returning a new map.
func MergeHeaders(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]string)
	}
	maps.Copy(out, override)
	return out
}

// AppendHeaderOptions appends one option.WithHeader per non-empty header to opts.
func AppendHeaderOptions(opts []option.RequestOption, headers map[string]string) []option.RequestOption {
	for key, value := range headers {
		if strings.TrimSpace(key) == "" || strings.TrimSpace(value) == "" {
			continue
		}
		opts = append(opts, option.WithHeader(key, value))
	}
	return opts
}
