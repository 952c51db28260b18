package elevenlabs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
)

// Voice is one entry of the account's voice library.
type Voice struct {
	ID          string            `json:"voice_id"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	Labels      map[string]string `json:"labels"`
}

type voicesResponse struct {
	Voices []Voice `json:"voices"`
}

// ListVoices returns the voices available to the API key, sorted by name.
func (s *Synthesizer) ListVoices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(s.cfg.APIURL, "/")+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("build voices request: %w", err)
	}
	req.Header.Set("xi-api-key", s.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read voices response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list voices: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload voicesResponse
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode voices response: %w", err)
	}

	sort.SliceStable(payload.Voices, func(i, j int) bool {
		return strings.ToLower(payload.Voices[i].Name) < strings.ToLower(payload.Voices[j].Name)
	})
	return payload.Voices, nil
}

// FormatLabels renders labels as sorted key=value pairs.
func (v Voice) FormatLabels() string {
	if len(v.Labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v.Labels))
	for k := range v.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+v.Labels[k])
	}
	return strings.Join(parts, ", ")
}
