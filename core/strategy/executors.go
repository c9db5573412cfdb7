package strategy

import (
	"math"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/model"
)

// executePID runs a classic PID on the power-balance error. The error is the
// negated net balance: a deficit produces a positive correction (request more
// discharge / less charging).
func (s *Selector) executePID(in model.Inputs) float64 {
	err := -in.NetBalanceW()
	p := &s.pid
	p.integral += err
	// anti-windup
	if p.integral > 5000 {
		p.integral = 5000
	} else if p.integral < -5000 {
		p.integral = -5000
	}
	deriv := 0.0
	if p.primed {
		deriv = err - p.prevErr
	}
	p.prevErr = err
	p.primed = true
	return p.gains.Kp*err + p.gains.Ki*p.integral + p.gains.Kd*deriv
}

// executeFuzzy maps the balance error through coarse membership bands and
// returns a correction proportional to the band weight.
func (s *Selector) executeFuzzy(in model.Inputs) float64 {
	err := -in.NetBalanceW()
	mag := math.Abs(err)
	var weight float64
	switch {
	case mag < 50:
		weight = 0.1
	case mag < 200:
		weight = 0.4
	case mag < 500:
		weight = 0.7
	default:
		weight = 1.0
	}
	return weight * err
}

// executeMPC averages the forecast deficit across the receding horizon and
// pre-corrects for it. Falls back to the PID behaviour when no forecast is
// available.
func (s *Selector) executeMPC(in model.Inputs) float64 {
	loadFc := in.Predictions.LoadForecastW
	genFc := in.Predictions.GenerationForecastW
	n := s.mpc.horizon
	if len(loadFc) < n {
		n = len(loadFc)
	}
	if len(genFc) < n {
		n = len(genFc)
	}
	if n == 0 {
		return s.executePID(in)
	}
	var predicted float64
	for i := 0; i < n; i++ {
		predicted += loadFc[i] - genFc[i]
	}
	predicted /= float64(n)
	current := -in.NetBalanceW()
	return 0.6*current + 0.4*predicted
}

// executeAdaptive blends the PID output with a learned weight that tracks the
// observed error gradient at the configured learning rate.
func (s *Selector) executeAdaptive(in model.Inputs) float64 {
	err := -in.NetBalanceW()
	base := s.executePID(in)
	a := &s.adp
	a.weight += a.learningRate * (err - a.weight)
	return (1-a.learningRate)*base + a.learningRate*a.weight
}
