package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alprSample = `Loading region profile...
{"version":2,"data_type":"alpr_results","epoch_time":1700000000,"results":[
  {"plate":"ABC1D23","confidence":85.1,"matches_template":1,"candidates":[
    {"plate":"ABC1D23","confidence":85.1,"matches_template":1},
    {"plate":"A8C1D23","confidence":86.0,"matches_template":0},
    {"plate":"ABC1O23","confidence":70.0,"matches_template":0}
  ]}
]}
trailing noise`

func TestBestALPRPlate(t *testing.T) {
	t.Run("template bonus beats slightly higher confidence", func(t *testing.T) {
		plate, err := BestALPRPlate([]byte(alprSample), 80)
		require.NoError(t, err)
		assert.Equal(t, "ABC1D23", plate)
	})

	t.Run("candidates below threshold are ignored", func(t *testing.T) {
		out := `{"results":[{"plate":"XYZ9K88","confidence":60,"candidates":[{"plate":"XYZ9K88","confidence":60,"matches_template":1}]}]}`
		_, err := BestALPRPlate([]byte(out), 80)
		assert.ErrorIs(t, err, ErrNoPlate)
	})

	t.Run("empty results", func(t *testing.T) {
		_, err := BestALPRPlate([]byte(`{"results":[]}`), 80)
		assert.ErrorIs(t, err, ErrNoPlate)
	})

	t.Run("no json at all", func(t *testing.T) {
		_, err := BestALPRPlate([]byte("Error opening image"), 80)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoPlate)
	})
}

func TestNeedsFallback(t *testing.T) {
	assert.True(t, needsFallback("Error loading /usr/share/openalpr/runtime_data/config/br.conf"))
	assert.True(t, needsFallback("--(!)Missing config for the country: br"))
	assert.True(t, needsFallback("cannot open CPU classifier"))
	assert.False(t, needsFallback(`{"results":[]}`))
}

type alprCall struct {
	name string
	args []string
}

func TestOpenALPRRecognize(t *testing.T) {
	cfg := OpenALPRConfig{Command: "alpr", Region: "br", FallbackRegion: "eu", TopN: 5, MinConfidence: 80}

	t.Run("first region succeeds", func(t *testing.T) {
		var calls []alprCall
		a := NewOpenALPR(cfg, zerolog.Nop())
		a.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
			calls = append(calls, alprCall{name: name, args: args})
			return []byte(alprSample), nil
		}

		plate, err := a.Recognize(context.Background(), []byte("jpeg"))
		require.NoError(t, err)
		assert.Equal(t, "ABC1D23", plate)
		require.Len(t, calls, 1)
		assert.Equal(t, "alpr", calls[0].name)
		assert.Equal(t, []string{"-j", "-c", "br", "-n", "5"}, calls[0].args[:5])
	})

	t.Run("missing profile falls back to second region", func(t *testing.T) {
		var regions []string
		a := NewOpenALPR(cfg, zerolog.Nop())
		a.run = func(_ context.Context, _ string, args ...string) ([]byte, error) {
			regions = append(regions, args[2])
			if args[2] == "br" {
				return []byte("Error loading br.xml\n"), errors.New("exit status 1")
			}
			return []byte(`{"results":[{"plate":"XYZ9K88","confidence":91,"candidates":[]}]}`), nil
		}

		plate, err := a.Recognize(context.Background(), []byte("jpeg"))
		require.NoError(t, err)
		assert.Equal(t, "XYZ9K88", plate)
		assert.Equal(t, []string{"br", "eu"}, regions)
	})

	t.Run("no fallback for ordinary misses", func(t *testing.T) {
		calls := 0
		a := NewOpenALPR(cfg, zerolog.Nop())
		a.run = func(context.Context, string, ...string) ([]byte, error) {
			calls++
			return []byte(`{"results":[]}`), nil
		}

		_, err := a.Recognize(context.Background(), []byte("jpeg"))
		assert.ErrorIs(t, err, ErrNoPlate)
		assert.Equal(t, 1, calls)
	})
}
