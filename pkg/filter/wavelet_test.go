package filter

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noisySine(n int, noise float64) (clean, noisy []float64) {
	rng := rand.New(rand.NewPCG(7, 11))
	clean = make([]float64, n)
	noisy = make([]float64, n)

	for i := range n {
		clean[i] = math.Sin(2 * math.Pi * float64(i) / 128)
		noisy[i] = clean[i] + noise*rng.NormFloat64()
	}

	return clean, noisy
}

func meanSquaredError(a, b []float64) float64 {
	var sum float64

	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return sum / float64(len(a))
}

func TestDWT_PerfectReconstruction(t *testing.T) {
	t.Parallel()

	x := []float64{3, -1, 4, 1, -5, 9, 2, -6, 5, 3, -5, 8, 9, 7, -9, 3}

	for name, h := range lowPass {
		t.Run(string(name), func(t *testing.T) {
			t.Parallel()

			approx, detail := dwtStep(x, h)
			got := idwtStep(approx, detail, h)

			require.Len(t, got, len(x))

			for i := range x {
				assert.InDelta(t, x[i], got[i], 1e-12, "sample %d", i)
			}
		})
	}
}

func TestWaveletDenoise_ConstantIsUnchanged(t *testing.T) {
	t.Parallel()

	x := make([]float64, 37)
	for i := range x {
		x[i] = 42.5
	}

	for _, w := range CalibrationWavelets {
		got, err := WaveletDenoise(x, WaveletConfig{Wavelet: w})
		require.NoError(t, err)
		require.Len(t, got, len(x))

		for i := range x {
			assert.InDelta(t, 42.5, got[i], 1e-9)
		}
	}
}

func TestWaveletDenoise_ReducesNoise(t *testing.T) {
	t.Parallel()

	clean, noisy := noisySine(512, 0.3)

	for _, w := range CalibrationWavelets {
		got, err := WaveletDenoise(noisy, WaveletConfig{Wavelet: w})
		require.NoError(t, err)
		assert.Less(t, meanSquaredError(got, clean), meanSquaredError(noisy, clean)/2, "wavelet %s", w)
	}
}

func TestCalibrateWavelet(t *testing.T) {
	t.Parallel()

	_, noisy := noisySine(256, 0.2)

	res, err := CalibrateWavelet(noisy)
	require.NoError(t, err)

	assert.Contains(t, CalibrationWavelets, res.Config.Wavelet)
	assert.Greater(t, res.Config.Sigma, 0.0)
	assert.False(t, math.IsInf(res.Loss, 0))
	assert.Len(t, res.Denoised, len(noisy))
}

func TestCalibrateWavelet_Flat(t *testing.T) {
	t.Parallel()

	res, err := CalibrateWavelet([]float64{1, 1, 1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 1, 1}, res.Denoised)
}

func TestWaveletDenoise_Errors(t *testing.T) {
	t.Parallel()

	_, err := WaveletDenoise([]float64{1, 2, 3}, WaveletConfig{Wavelet: WaveletDB1})
	require.ErrorIs(t, err, ErrInsufficientData)

	_, err = WaveletDenoise([]float64{1, 2, math.NaN(), 4}, WaveletConfig{Wavelet: WaveletDB1})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = WaveletDenoise([]float64{1, 2, 3, 4}, WaveletConfig{Wavelet: "sym8"})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = WaveletDenoise([]float64{1, 2, 3, 4}, WaveletConfig{Wavelet: WaveletDB2, Sigma: -1})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWaveletDenoise_LevelLimit(t *testing.T) {
	t.Parallel()

	ramp := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	tests := []struct {
		name    string
		cfg     WaveletConfig
		wantErr bool
	}{
		{name: "db1_deepest", cfg: WaveletConfig{Wavelet: WaveletDB1, Levels: 3}},
		{name: "db1_too_deep", cfg: WaveletConfig{Wavelet: WaveletDB1, Levels: 4}, wantErr: true},
		{name: "db1_shift_overflow", cfg: WaveletConfig{Wavelet: WaveletDB1, Levels: 64}, wantErr: true},
		{name: "db2_deepest", cfg: WaveletConfig{Wavelet: WaveletDB2, Levels: 1}},
		{name: "db2_too_deep", cfg: WaveletConfig{Wavelet: WaveletDB2, Levels: 2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := WaveletDenoise(ramp, tt.cfg)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)

				return
			}

			require.NoError(t, err)
			assert.Len(t, got, len(ramp))
		})
	}
}

func TestSymmetricPad(t *testing.T) {
	t.Parallel()

	got := symmetricPad([]float64{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 5, 4, 3}, got)
}
