package filter

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/Sumatoshi-tech/shorefilter/pkg/alg/stats"
)

// Wavelet names an orthogonal Daubechies wavelet.
type Wavelet string

// Supported wavelets.
const (
	WaveletDB1 Wavelet = "db1"
	WaveletDB2 Wavelet = "db2"
)

const (
	// minWaveletSamples is the shortest series the denoiser accepts.
	minWaveletSamples = 4
	// levelsBelowMax mirrors the usual choice of stopping three levels short
	// of the deepest decomposition.
	levelsBelowMax = 3
	// gaussianMADScale is the 0.75 quantile of the standard normal.
	gaussianMADScale = 0.6744897501960817
	// calibrationStride is the masking stride of the J-invariant calibration.
	calibrationStride = 4
)

var (
	sqrt2 = math.Sqrt2
	sqrt3 = math.Sqrt(3)

	// lowPass holds the orthonormal decomposition low-pass filters.
	lowPass = map[Wavelet][]float64{
		WaveletDB1: {1 / sqrt2, 1 / sqrt2},
		WaveletDB2: {
			(1 + sqrt3) / (4 * sqrt2),
			(3 + sqrt3) / (4 * sqrt2),
			(3 - sqrt3) / (4 * sqrt2),
			(1 - sqrt3) / (4 * sqrt2),
		},
	}

	// CalibrationSigmas are the noise levels tried by CalibrateWavelet, as a
	// fraction of the series range.
	CalibrationSigmas = []float64{0.02, 0.04, 0.06, 0.08, 0.10, 0.12, 0.14, 0.16, 0.18}
	// CalibrationWavelets are the wavelets tried by CalibrateWavelet.
	CalibrationWavelets = []Wavelet{WaveletDB1, WaveletDB2}
)

// WaveletConfig parameterizes WaveletDenoise.
type WaveletConfig struct {
	Wavelet Wavelet
	// Sigma is the noise standard deviation in data units; zero estimates it
	// from the finest detail coefficients.
	Sigma float64
	// Levels is the decomposition depth; zero picks it from the series length.
	Levels int
}

// WaveletDenoise removes noise from x with a periodized multi-level DWT and
// BayesShrink soft thresholding of the detail coefficients. Unlike the
// outlier filters it changes values; it never removes samples.
func WaveletDenoise(x []float64, cfg WaveletConfig) ([]float64, error) {
	h, err := checkWaveletInput(x, cfg)
	if err != nil {
		return nil, err
	}

	levels := cfg.Levels
	if levels <= 0 {
		levels = autoLevels(len(x), len(h))
	}

	padded := symmetricPad(x, levels)
	approx := padded
	details := make([][]float64, levels)

	for lvl := range levels {
		approx, details[lvl] = dwtStep(approx, h)
	}

	sigma := cfg.Sigma
	if sigma <= 0 {
		sigma = estimateSigma(details[0])
	}

	if sigma > 0 {
		variance := sigma * sigma

		for _, d := range details {
			softThreshold(d, bayesThreshold(d, variance))
		}
	}

	for lvl := levels - 1; lvl >= 0; lvl-- {
		approx = idwtStep(approx, details[lvl], h)
	}

	return approx[:len(x)], nil
}

// CalibrationResult reports the parameters chosen by CalibrateWavelet.
type CalibrationResult struct {
	Config WaveletConfig
	// Loss is the self-supervised mean squared error of the chosen parameters.
	Loss float64
	// Denoised is x denoised with Config.
	Denoised []float64
}

// CalibrateWavelet picks the wavelet and noise level minimizing the
// J-invariant loss: every calibrationStride-th sample is masked and replaced
// by the mean of its neighbours, the series is denoised, and the output at
// the masked samples is compared with the input.
func CalibrateWavelet(x []float64) (CalibrationResult, error) {
	_, err := checkWaveletInput(x, WaveletConfig{Wavelet: WaveletDB1})
	if err != nil {
		return CalibrationResult{}, err
	}

	scale := floats.Max(x) - floats.Min(x)
	if scale == 0 {
		return CalibrationResult{
			Config:   WaveletConfig{Wavelet: WaveletDB1},
			Denoised: slices.Clone(x),
		}, nil
	}

	best := CalibrationResult{Loss: math.Inf(1)}

	for _, w := range CalibrationWavelets {
		for _, frac := range CalibrationSigmas {
			cfg := WaveletConfig{Wavelet: w, Sigma: frac * scale}

			loss, lossErr := invariantLoss(x, cfg)
			if lossErr != nil {
				return CalibrationResult{}, lossErr
			}

			if loss < best.Loss {
				best.Config = cfg
				best.Loss = loss
			}
		}
	}

	denoised, err := WaveletDenoise(x, best.Config)
	if err != nil {
		return CalibrationResult{}, err
	}

	best.Denoised = denoised

	return best, nil
}

// Validate returns an error wrapping ErrInvalidConfig for an unknown wavelet
// or a negative sigma or level count.
func (c WaveletConfig) Validate() error {
	if _, ok := lowPass[c.Wavelet]; !ok {
		return fmt.Errorf("%w: unknown wavelet %q", ErrInvalidConfig, c.Wavelet)
	}

	if !isFinite(c.Sigma) || c.Sigma < 0 || c.Levels < 0 {
		return fmt.Errorf("%w: sigma and levels must be >= 0", ErrInvalidConfig)
	}

	return nil
}

func checkWaveletInput(x []float64, cfg WaveletConfig) ([]float64, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if len(x) < minWaveletSamples {
		return nil, fmt.Errorf("%w: wavelet denoising needs %d samples, have %d", ErrInsufficientData, minWaveletSamples, len(x))
	}

	if !stats.AllFinite(x) {
		return nil, fmt.Errorf("%w: values must be finite", ErrInvalidInput)
	}

	h := lowPass[cfg.Wavelet]

	if limit := maxLevel(len(x), len(h)); cfg.Levels > limit {
		return nil, fmt.Errorf("%w: %d levels requested, %d samples allow at most %d for %s",
			ErrInvalidConfig, cfg.Levels, len(x), limit, cfg.Wavelet)
	}

	return h, nil
}

func invariantLoss(x []float64, cfg WaveletConfig) (float64, error) {
	invariant := make([]float64, len(x))

	for phase := range calibrationStride {
		masked := slices.Clone(x)

		for i := phase; i < len(x); i += calibrationStride {
			masked[i] = neighbourMean(x, i)
		}

		denoised, err := WaveletDenoise(masked, cfg)
		if err != nil {
			return 0, err
		}

		for i := phase; i < len(x); i += calibrationStride {
			invariant[i] = denoised[i]
		}
	}

	dist := floats.Distance(invariant, x, 2)

	return dist * dist / float64(len(x)), nil
}

func neighbourMean(x []float64, i int) float64 {
	switch {
	case i == 0:
		return x[1]
	case i == len(x)-1:
		return x[i-1]
	default:
		return (x[i-1] + x[i+1]) / 2
	}
}

// autoLevels returns max(maxLevel-3, 1) where maxLevel is the deepest useful
// decomposition for a filter of length filterLen.
// maxLevel is the deepest useful decomposition of n samples with a filter of
// the given length.
func maxLevel(n, filterLen int) int {
	return max(int(math.Floor(math.Log2(float64(n)/float64(filterLen-1)))), 0)
}

func autoLevels(n, filterLen int) int {
	return max(maxLevel(n, filterLen)-levelsBelowMax, 1)
}

// symmetricPad extends x by half-sample mirroring to a multiple of 2^levels.
func symmetricPad(x []float64, levels int) []float64 {
	block := 1 << levels
	size := (len(x) + block - 1) / block * block
	out := make([]float64, size)

	for i := range out {
		out[i] = x[mirrorIndex(i, len(x))]
	}

	return out
}

func mirrorIndex(i, n int) int {
	period := 2 * n
	i %= period

	if i >= n {
		i = period - 1 - i
	}

	return i
}

// dwtStep performs one periodized analysis step on an even-length signal.
func dwtStep(x, h []float64) (approx, detail []float64) {
	n := len(x)
	half := n / 2
	approx = make([]float64, half)
	detail = make([]float64, half)

	for k := range half {
		for m, hm := range h {
			v := x[(2*k+m)%n]
			approx[k] += hm * v
			detail[k] += highPass(h, m) * v
		}
	}

	return approx, detail
}

// idwtStep inverts dwtStep.
func idwtStep(approx, detail, h []float64) []float64 {
	n := 2 * len(approx)
	out := make([]float64, n)

	for k := range approx {
		for m, hm := range h {
			out[(2*k+m)%n] += hm*approx[k] + highPass(h, m)*detail[k]
		}
	}

	return out
}

// highPass returns the m-th quadrature mirror coefficient of h.
func highPass(h []float64, m int) float64 {
	g := h[len(h)-1-m]
	if m%2 == 1 {
		return -g
	}

	return g
}

// estimateSigma is the robust noise estimate MAD/0.6745 over the non-zero
// finest detail coefficients.
func estimateSigma(detail []float64) float64 {
	abs := make([]float64, 0, len(detail))

	for _, d := range detail {
		if d != 0 {
			abs = append(abs, math.Abs(d))
		}
	}

	if len(abs) == 0 {
		return 0
	}

	return stats.Median(abs) / gaussianMADScale
}

// bayesThreshold is the BayesShrink threshold of one detail band.
func bayesThreshold(detail []float64, variance float64) float64 {
	energy := floats.Dot(detail, detail) / float64(len(detail))
	signal := math.Sqrt(max(energy-variance, epsilon))

	return variance / signal
}

const epsilon = 2.220446049250313e-16

func softThreshold(coeffs []float64, threshold float64) {
	for i, c := range coeffs {
		mag := math.Abs(c) - threshold
		if mag <= 0 {
			coeffs[i] = 0

			continue
		}

		coeffs[i] = math.Copysign(mag, c)
	}
}
