package spotify

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/zmb3/spotify/v2"
)

func TestConvertAudioFeatures(t *testing.T) {
	f := &spotify.AudioFeatures{
		Acousticness: 0.5,
		Danceability: 0.75,
		Energy:       0.25,
		Valence:      0.625,
		Tempo:        120.0,
	}

	got := convertAudioFeatures("t1", f)

	tests := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"Acousticness", got.Acousticness, 0.5},
		{"Danceability", got.Danceability, 0.75},
		{"Energy", got.Energy, 0.25},
		{"Valence", got.Valence, 0.625},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
	if got.TrackID != "t1" {
		t.Errorf("TrackID = %q, want t1", got.TrackID)
	}
}

func TestAudioFeatures_BatchesAndSkipsNulls(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		ids := strings.Split(r.URL.Query().Get("ids"), ",")

		var b strings.Builder
		b.WriteString(`{"audio_features": [`)
		for i, id := range ids {
			if i > 0 {
				b.WriteString(",")
			}
			if id == "missing" {
				b.WriteString("null")
				continue
			}
			b.WriteString(`{"id": "` + id + `", "energy": 0.5, "valence": 0.25}`)
		}
		b.WriteString(`]}`)
		writeJSON(w, b.String())
	}))

	ids := make([]string, 0, 150)
	for i := range 149 {
		ids = append(ids, "t"+strings.Repeat("x", i%5)+string(rune('a'+i%26)))
	}
	ids = append(ids, "missing")

	got, err := c.AudioFeatures(context.Background(), ids)
	if err != nil {
		t.Fatalf("AudioFeatures() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("got %d API calls, want 2", calls.Load())
	}
	if _, ok := got["missing"]; ok {
		t.Error("track without features should be absent")
	}
	if f, ok := got[ids[0]]; !ok || f.Energy != 0.5 || f.Valence != 0.25 {
		t.Errorf("features for %s = %+v, %v", ids[0], f, ok)
	}
}

func TestAudioFeatures_Empty(t *testing.T) {
	c := New(nil)

	got, err := c.AudioFeatures(context.Background(), nil)
	if err != nil {
		t.Fatalf("AudioFeatures(nil) error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("AudioFeatures(nil) = %v, want empty", got)
	}
}
