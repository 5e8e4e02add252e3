package plan

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a plan document from disk, picking the parser by
// extension: .zwo is Zwift workout XML, everything else is the native
// YAML format.
func Load(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plan: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".zwo") {
		return ParseZWO(f)
	}
	return ParseYAML(f)
}

type yamlDocument struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Steps       []yamlNode `yaml:"steps"`
}

// yamlNode is either a step (name/duration/...) or a repeat block
// (repeat key set). Setting both is rejected.
type yamlNode struct {
	yamlStep `yaml:",inline"`
	Repeat   *yamlRepeat `yaml:"repeat"`
}

type yamlRepeat struct {
	Name  string     `yaml:"name"`
	Count int        `yaml:"count"`
	Steps []yamlStep `yaml:"steps"`
}

type yamlStep struct {
	Name     string     `yaml:"name"`
	Duration string     `yaml:"duration"` // Go duration syntax, e.g. "12m"
	Distance float64    `yaml:"distance"` // meters
	Cadence  int        `yaml:"cadence"`
	Target   yamlTarget `yaml:"target"`
}

// yamlTarget bands are [low, high] pairs; a single value means an
// exact target. Power and heart_rate are fractions of FTP / threshold
// HR, pace is m/s.
type yamlTarget struct {
	Power     []float64 `yaml:"power"`
	HeartRate []float64 `yaml:"heart_rate"`
	Pace      []float64 `yaml:"pace"`
}

// ParseYAML decodes the native plan document format.
func ParseYAML(r io.Reader) (*Plan, error) {
	var doc yamlDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}

	p := &Plan{Name: doc.Name, Description: doc.Description}
	for i, n := range doc.Steps {
		if n.Repeat != nil {
			if n.yamlStep.Name != "" || n.yamlStep.Duration != "" {
				return nil, fmt.Errorf("%w: entry %d mixes step and repeat fields", ErrInvalid, i)
			}
			block := Repeat{Name: n.Repeat.Name, Count: n.Repeat.Count}
			for j, ys := range n.Repeat.Steps {
				s, err := ys.toStep()
				if err != nil {
					return nil, fmt.Errorf("block %q step %d: %w", n.Repeat.Name, j, err)
				}
				block.Steps = append(block.Steps, s)
			}
			p.Nodes = append(p.Nodes, block)
			continue
		}

		s, err := n.yamlStep.toStep()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		p.Nodes = append(p.Nodes, s)
	}

	if err := Validate(p.Nodes); err != nil {
		return nil, err
	}
	return p, nil
}

func (ys yamlStep) toStep() (Step, error) {
	s := Step{
		Name:     ys.Name,
		Distance: ys.Distance,
		Cadence:  ys.Cadence,
	}
	if ys.Duration != "" {
		d, err := time.ParseDuration(ys.Duration)
		if err != nil {
			return Step{}, fmt.Errorf("%w: bad duration %q", ErrInvalid, ys.Duration)
		}
		s.Duration = d
	}

	for _, tb := range []struct {
		kind TargetKind
		band []float64
	}{
		{TargetPower, ys.Target.Power},
		{TargetHeartRate, ys.Target.HeartRate},
		{TargetPace, ys.Target.Pace},
	} {
		t, ok, err := bandTarget(tb.kind, tb.band)
		if err != nil {
			return Step{}, err
		}
		if ok {
			s.Targets = append(s.Targets, t)
		}
	}
	return s, nil
}

func bandTarget(kind TargetKind, band []float64) (Target, bool, error) {
	switch len(band) {
	case 0:
		return Target{}, false, nil
	case 1:
		return Target{Kind: kind, Low: band[0], High: band[0]}, true, nil
	case 2:
		if band[0] > band[1] {
			return Target{}, false, fmt.Errorf("%w: %s band [%g, %g] is inverted", ErrInvalid, kind, band[0], band[1])
		}
		return Target{Kind: kind, Low: band[0], High: band[1]}, true, nil
	}
	return Target{}, false, fmt.Errorf("%w: %s band has %d values, want 1 or 2", ErrInvalid, kind, len(band))
}

// Zwift workout XML. Warmup/Cooldown/Ramp power bands span
// PowerLow..PowerHigh; IntervalsT expands to a repeat block of one
// on-step and one off-step.
type zwoFile struct {
	XMLName     xml.Name   `xml:"workout_file"`
	Name        string     `xml:"name"`
	Description string     `xml:"description"`
	Workout     zwoWorkout `xml:"workout"`
}

type zwoWorkout struct {
	Steps []zwoStep `xml:",any"`
}

type zwoStep struct {
	XMLName     xml.Name
	Duration    int     `xml:"Duration,attr"`
	Power       float64 `xml:"Power,attr"`
	PowerLow    float64 `xml:"PowerLow,attr"`
	PowerHigh   float64 `xml:"PowerHigh,attr"`
	Cadence     int     `xml:"Cadence,attr"`
	Repeat      int     `xml:"Repeat,attr"`
	OnDuration  int     `xml:"OnDuration,attr"`
	OffDuration int     `xml:"OffDuration,attr"`
	OnPower     float64 `xml:"OnPower,attr"`
	OffPower    float64 `xml:"OffPower,attr"`
}

// ParseZWO decodes a Zwift .zwo workout into a plan.
func ParseZWO(r io.Reader) (*Plan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	var zwo zwoFile
	if err := xml.Unmarshal(data, &zwo); err != nil {
		return nil, fmt.Errorf("decoding zwo: %w", err)
	}

	p := &Plan{Name: zwo.Name, Description: zwo.Description}
	for i, zs := range zwo.Workout.Steps {
		kind := zs.XMLName.Local
		switch kind {
		case "SteadyState":
			p.Nodes = append(p.Nodes, Step{
				Name:     kind,
				Duration: time.Duration(zs.Duration) * time.Second,
				Cadence:  zs.Cadence,
				Targets:  []Target{{Kind: TargetPower, Low: zs.Power, High: zs.Power}},
			})
		case "Warmup", "Cooldown", "Ramp":
			low, high := zs.PowerLow, zs.PowerHigh
			if low > high {
				low, high = high, low
			}
			p.Nodes = append(p.Nodes, Step{
				Name:     kind,
				Duration: time.Duration(zs.Duration) * time.Second,
				Cadence:  zs.Cadence,
				Targets:  []Target{{Kind: TargetPower, Low: low, High: high}},
			})
		case "IntervalsT":
			p.Nodes = append(p.Nodes, Repeat{
				Name:  fmt.Sprintf("IntervalsT-%d", i),
				Count: zs.Repeat,
				Steps: []Step{
					{
						Name:     "on",
						Duration: time.Duration(zs.OnDuration) * time.Second,
						Cadence:  zs.Cadence,
						Targets:  []Target{{Kind: TargetPower, Low: zs.OnPower, High: zs.OnPower}},
					},
					{
						Name:     "off",
						Duration: time.Duration(zs.OffDuration) * time.Second,
						Targets:  []Target{{Kind: TargetPower, Low: zs.OffPower, High: zs.OffPower}},
					},
				},
			})
		case "FreeRide":
			p.Nodes = append(p.Nodes, Step{
				Name:     kind,
				Duration: time.Duration(zs.Duration) * time.Second,
				Cadence:  zs.Cadence,
			})
		default:
			return nil, fmt.Errorf("%w: unknown zwo element %q", ErrInvalid, kind)
		}
	}

	if err := Validate(p.Nodes); err != nil {
		return nil, err
	}
	return p, nil
}
