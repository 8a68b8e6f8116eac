package audio

import (
	"sync"

	resampler "github.com/godeps/go-audio-soxr"
)

type soxrKey struct {
	inRate  int
	outRate int
}

var soxrPools sync.Map

func getSoxrPool(key soxrKey) *sync.Pool {
	if pool, ok := soxrPools.Load(key); ok {
		return pool.(*sync.Pool)
	}
	pool := &sync.Pool{}
	actual, _ := soxrPools.LoadOrStore(key, pool)
	return actual.(*sync.Pool)
}

func acquireSoxrResampler(inRate, outRate int) (*resampler.SimpleResamplerFloat32, error) {
	if v := getSoxrPool(soxrKey{inRate: inRate, outRate: outRate}).Get(); v != nil {
		if r, ok := v.(*resampler.SimpleResamplerFloat32); ok && r != nil {
			return r, nil
		}
	}
	return resampler.NewEngineFloat32(float64(inRate), float64(outRate), resampler.QualityHigh)
}

func releaseSoxrResampler(inRate, outRate int, r *resampler.SimpleResamplerFloat32) {
	if r == nil {
		return
	}
	r.Reset()
	getSoxrPool(soxrKey{inRate: inRate, outRate: outRate}).Put(r)
}

// Resample converts mono PCM16 between sample rates.
func Resample(samples []int16, inRate, outRate int) ([]int16, error) {
	if inRate == outRate || len(samples) == 0 {
		return samples, nil
	}
	r, err := acquireSoxrResampler(inRate, outRate)
	if err != nil {
		return nil, err
	}
	defer releaseSoxrResampler(inRate, outRate, r)

	in := AcquireFloat32(len(samples))
	in = Int16SliceToFloat32Into(in, samples)
	out, err := r.Process(in)
	ReleaseFloat32(in)
	if err != nil {
		return nil, err
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, err
	}
	out = append(out, tail...)
	return Float32SliceToInt16SliceInto(nil, out), nil
}
