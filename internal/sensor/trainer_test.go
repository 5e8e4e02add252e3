package sensor

import (
	"context"
	"testing"
	"time"

	"trainlog/internal/buffer"
)

func TestSpeedIncreasesWithPower(t *testing.T) {
	slow := Speed(100, 0, 75)
	fast := Speed(300, 0, 75)
	if fast <= slow {
		t.Errorf("Speed(300W) = %f <= Speed(100W) = %f", fast, slow)
	}
}

func TestSpeedFlatTwoHundredWatts(t *testing.T) {
	// 200W on the flat for a 75kg rider+bike lands around 9-10 m/s
	// (~34 km/h) with these drag numbers.
	v := Speed(200, 0, 75)
	if v < 8 || v > 11 {
		t.Errorf("Speed(200W, flat) = %f m/s, want 8..11", v)
	}
}

func TestSpeedClimbSlowerThanFlat(t *testing.T) {
	flat := Speed(200, 0, 75)
	climb := Speed(200, 8, 75)
	if climb >= flat {
		t.Errorf("climbing speed %f >= flat speed %f", climb, flat)
	}
}

func TestSpeedZeroPowerDescent(t *testing.T) {
	// Coasting down 10%: gravity alone produces real speed.
	v := Speed(0, -10, 75)
	if v < 5 {
		t.Errorf("coasting descent speed = %f m/s, want > 5", v)
	}
	// And zero power on the flat goes nowhere fast.
	if flat := Speed(0, 0, 75); flat > 1 {
		t.Errorf("zero-power flat speed = %f, want ~0", flat)
	}
}

func TestTrainerEmitsRide(t *testing.T) {
	trainer := NewTrainer(TrainerConfig{
		TargetPower: 200,
		Duration:    2 * time.Minute,
	})

	var samples []buffer.Sample
	err := trainer.Run(context.Background(), func(s buffer.Sample) {
		samples = append(samples, s)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(samples) != 120 {
		t.Fatalf("emitted %d samples, want 120", len(samples))
	}

	var prevDist float64
	for i, s := range samples {
		if s.Power == nil || s.HeartRate == nil || s.Speed == nil || s.Distance == nil {
			t.Fatalf("sample %d has missing readings", i)
		}
		if *s.Power < 190 || *s.Power > 210 {
			t.Errorf("sample %d power = %d, want near 200", i, *s.Power)
		}
		if *s.Distance < prevDist {
			t.Errorf("distance decreased at sample %d", i)
		}
		prevDist = *s.Distance
		if s.Monotonic != time.Duration(i)*time.Second {
			t.Errorf("sample %d monotonic = %v, want %ds", i, s.Monotonic, i)
		}
	}

	// HR trends upward from its warm start toward the effort level.
	first := *samples[0].HeartRate
	last := *samples[len(samples)-1].HeartRate
	if last <= first {
		t.Errorf("HR did not rise: %d -> %d", first, last)
	}
}

func TestTrainerHonorsCancellation(t *testing.T) {
	trainer := NewTrainer(TrainerConfig{
		TargetPower: 200,
		Duration:    time.Hour,
		Realtime:    true,
		Rate:        10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	done := make(chan error, 1)
	go func() {
		done <- trainer.Run(ctx, func(buffer.Sample) { count++ })
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	if err := <-done; err != context.Canceled {
		t.Errorf("Run after cancel = %v, want context.Canceled", err)
	}
	if count == 0 {
		t.Error("no samples before cancellation")
	}
}
