package gate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// checkSpec is the YAML form of one check in a suite file.
type checkSpec struct {
	Name         string   `yaml:"name"`
	Type         string   `yaml:"type"` // probe | synthetic | metric
	Path         string   `yaml:"path"`
	Method       string   `yaml:"method"`
	ExpectStatus int      `yaml:"expect_status"`
	ExpectFields []string `yaml:"expect_fields"`
	Metric       string   `yaml:"metric"`
	Max          *float64 `yaml:"max"`
	Min          *float64 `yaml:"min"`
	Window       string   `yaml:"window"`
	Timeout      string   `yaml:"timeout"`
	// Lightweight checks are the subset re-run against a source group
	// before trusting it as a rollback destination.
	Lightweight bool `yaml:"lightweight"`
}

type suiteFile struct {
	Checks []checkSpec `yaml:"checks"`
}

// SuiteSet loads per-service check suites from a directory of YAML files.
// A service uses <service>.yaml if present, otherwise default.yaml,
// otherwise a built-in liveness+readiness pair.
type SuiteSet struct {
	dir     string
	querier MetricQuerier
}

func NewSuiteSet(dir string, querier MetricQuerier) *SuiteSet {
	return &SuiteSet{dir: dir, querier: querier}
}

// For returns the full check suite for a service.
func (s *SuiteSet) For(serviceName string) ([]Check, error) {
	specs, err := s.load(serviceName)
	if err != nil {
		return nil, err
	}
	return s.build(specs)
}

// Lightweight returns the service's lightweight checks, falling back to
// the suite's probe checks when none are marked lightweight.
func (s *SuiteSet) Lightweight(serviceName string) ([]Check, error) {
	specs, err := s.load(serviceName)
	if err != nil {
		return nil, err
	}

	var light []checkSpec
	for _, spec := range specs {
		if spec.Lightweight {
			light = append(light, spec)
		}
	}
	if len(light) == 0 {
		for _, spec := range specs {
			if spec.Type == "probe" {
				light = append(light, spec)
			}
		}
	}
	return s.build(light)
}

func (s *SuiteSet) load(serviceName string) ([]checkSpec, error) {
	for _, name := range []string{serviceName + ".yaml", "default.yaml"} {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read check suite %s: %w", name, err)
		}
		var f suiteFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse check suite %s: %w", name, err)
		}
		return f.Checks, nil
	}
	return builtinSuite(), nil
}

func builtinSuite() []checkSpec {
	return []checkSpec{
		{Name: "liveness", Type: "probe", Path: "/healthz", Timeout: "2s", Lightweight: true},
		{Name: "readiness", Type: "probe", Path: "/readyz", Timeout: "2s", Lightweight: true},
	}
}

func (s *SuiteSet) build(specs []checkSpec) ([]Check, error) {
	checks := make([]Check, 0, len(specs))
	for _, spec := range specs {
		timeout, err := parseDuration(spec.Timeout, 5*time.Second)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", spec.Name, err)
		}

		switch spec.Type {
		case "probe":
			checks = append(checks, &ProbeCheck{
				CheckName:  spec.Name,
				Path:       spec.Path,
				RunTimeout: timeout,
			})
		case "synthetic":
			checks = append(checks, &SyntheticCheck{
				CheckName:    spec.Name,
				Method:       spec.Method,
				Path:         spec.Path,
				ExpectStatus: spec.ExpectStatus,
				ExpectFields: spec.ExpectFields,
				RunTimeout:   timeout,
			})
		case "metric":
			window, err := parseDuration(spec.Window, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("check %s: %w", spec.Name, err)
			}
			checks = append(checks, &MetricCheck{
				CheckName:  spec.Name,
				Metric:     spec.Metric,
				Max:        spec.Max,
				Min:        spec.Min,
				Window:     window,
				RunTimeout: timeout,
				Querier:    s.querier,
			})
		default:
			return nil, fmt.Errorf("check %s: unknown type %q", spec.Name, spec.Type)
		}
	}
	return checks, nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
