package sensor

import (
	"context"
	"math"
	"time"

	"trainlog/internal/buffer"
)

// Physical constants for the cycling speed model.
const (
	gravity    = 9.81
	airDensity = 1.225 // kg/m3, sea level
	cdA        = 0.32  // drag area
	crr        = 0.005 // rolling resistance coefficient
	drivetrain = 0.96  // drivetrain efficiency
)

const (
	defaultRiderWeight = 66.0
	defaultBikeWeight  = 9.0
)

// TrainerConfig shapes the simulated ride.
type TrainerConfig struct {
	RiderWeight float64 // kg
	BikeWeight  float64 // kg

	// TargetPower drives the effort; HeartRate follows it with lag.
	TargetPower int
	RestingHR   int
	MaxHR       int

	Grade float64 // percent, constant for the whole ride

	Duration time.Duration
	Rate     time.Duration // sample period, default 1s

	// Realtime sleeps between samples. Off, the source emits the
	// whole ride immediately with synthetic timestamps, which is
	// what tests and the demo CLI want.
	Realtime bool
}

// Trainer is a simulated indoor trainer: constant target power with
// small oscillation, speed from a physics model, HR drifting toward a
// power-dependent ceiling.
type Trainer struct {
	cfg TrainerConfig
}

// NewTrainer builds a simulated source. Zero weights get defaults.
func NewTrainer(cfg TrainerConfig) *Trainer {
	if cfg.RiderWeight == 0 {
		cfg.RiderWeight = defaultRiderWeight
	}
	if cfg.BikeWeight == 0 {
		cfg.BikeWeight = defaultBikeWeight
	}
	if cfg.Rate <= 0 {
		cfg.Rate = time.Second
	}
	if cfg.RestingHR == 0 {
		cfg.RestingHR = 60
	}
	if cfg.MaxHR == 0 {
		cfg.MaxHR = 190
	}
	return &Trainer{cfg: cfg}
}

// Run emits one sample per configured period for the configured
// duration.
func (t *Trainer) Run(ctx context.Context, emit func(buffer.Sample)) error {
	steps := int(t.cfg.Duration / t.cfg.Rate)
	start := time.Now()
	hr := float64(t.cfg.RestingHR + 40)
	var distance float64

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		elapsed := time.Duration(i) * t.cfg.Rate
		power := t.powerAt(i)
		speed := Speed(power, t.cfg.Grade, t.cfg.RiderWeight+t.cfg.BikeWeight)
		distance += speed * t.cfg.Rate.Seconds()
		hr = t.nextHR(hr, power)
		cadence := 85 + i%5

		p := int(power)
		h := int(hr)
		s := speed
		d := distance
		emit(buffer.Sample{
			Monotonic: elapsed,
			Wall:      start.Add(elapsed),
			Power:     &p,
			HeartRate: &h,
			Cadence:   &cadence,
			Speed:     &s,
			Distance:  &d,
		})

		if t.cfg.Realtime {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.cfg.Rate):
			}
		}
	}
	return nil
}

// powerAt oscillates gently around the target so the ride is not a
// flat line.
func (t *Trainer) powerAt(i int) float64 {
	base := float64(t.cfg.TargetPower)
	return base + 5*math.Sin(float64(i)/20)
}

// nextHR drifts heart rate toward a steady state proportional to the
// effort, with first-order lag.
func (t *Trainer) nextHR(hr, power float64) float64 {
	// Rough steady state: resting + effort-scaled span, assuming
	// ~300W rides near max HR.
	target := float64(t.cfg.RestingHR) + (float64(t.cfg.MaxHR-t.cfg.RestingHR) * power / 300)
	if target > float64(t.cfg.MaxHR) {
		target = float64(t.cfg.MaxHR)
	}
	return hr + (target-hr)*0.02
}

// Speed solves for the steady-state speed (m/s) a rider holds at the
// given power and grade, by bisecting the power-balance equation.
// Bounded iteration keeps it robust on steep descents where the
// aerodynamic term dominates.
func Speed(watts, gradePercent, totalMass float64) float64 {
	powerWheel := watts * drivetrain

	theta := math.Atan(gradePercent / 100.0)
	forceGravity := totalMass * gravity * math.Sin(theta)
	forceRolling := totalMass * gravity * math.Cos(theta) * crr
	forceLinear := forceGravity + forceRolling
	constAero := 0.5 * airDensity * cdA

	low, high := 0.0, 40.0
	for i := 0; i < 20; i++ {
		mid := (low + high) / 2
		powerRequired := constAero*math.Pow(mid, 3) + forceLinear*mid
		if powerRequired < powerWheel {
			low = mid
		} else {
			high = mid
		}
		if high-low < 0.01 {
			break
		}
	}

	v := (low + high) / 2
	if v < 0 {
		return 0
	}
	return v
}
